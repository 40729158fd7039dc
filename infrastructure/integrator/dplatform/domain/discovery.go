package ddomain

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	rateLimitCode    = 1
	rateLimitMessage = "operateTooMuch"
)

type AuthResponse struct {
	AccessToken string `json:"access_token"`
}

// ListResponse é o envelope das listagens de campanhas e anúncios
type ListResponse[T any] struct {
	Code utils.FlexInt `json:"code"`
	Msg  string        `json:"msg"`
	Data []T           `json:"data"`
}

type Campaign struct {
	MongoID   utils.FlexString `json:"mongo_id"`
	ID        utils.FlexString `json:"id"`
	AccountID utils.FlexString `json:"account_id"`
	EndDate   string           `json:"end_date"`
	Status    utils.FlexString `json:"status"`
}

// IsActive interpreta o status da campanha; ausência de status conta como inativa
func (c Campaign) IsActive() bool {
	switch strings.ToLower(strings.TrimSpace(c.Status.String())) {
	case "1", "active", "on", "running", "true":
		return true
	}
	return false
}

// EndTime aceita "YYYY-MM-DD" e "YYYY-MM-DD HH:MM:SS"
func (c Campaign) EndTime() (time.Time, bool) {
	raw := strings.TrimSpace(c.EndDate)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return utils.CivilDate(t), true
		}
	}
	return time.Time{}, false
}

// IsRelevant decide se a campanha ainda deve ser consultada para uma janela que
// começa em start. Campanhas ativas sempre entram. Campanhas inativas entram
// enquanto start não passar de end_date + grace; sem end_date legível, entram.
func (c Campaign) IsRelevant(start time.Time, grace time.Duration) bool {
	if c.IsActive() {
		return true
	}

	end, ok := c.EndTime()
	if !ok {
		return true
	}

	return !utils.CivilDate(start).After(end.Add(grace))
}

type Ad struct {
	MongoID  utils.FlexString `json:"mongo_id"`
	Campaign utils.FlexString `json:"campaign"`
}

// ReportRow é uma linha diária do relatório de um anúncio
type ReportRow struct {
	Date   string             `json:"date"`
	Day    string             `json:"day"`
	Charge *utils.FlexDecimal `json:"charge"`
	Cost   *utils.FlexDecimal `json:"cost"`
	Imp    utils.FlexInt      `json:"imp"`
	Click  utils.FlexInt      `json:"click"`
	CV     utils.FlexInt      `json:"cv"`
}

// Spend usa charge e recorre a cost quando charge não vem
func (r ReportRow) Spend() decimal.Decimal {
	if r.Charge != nil {
		return r.Charge.Decimal
	}
	if r.Cost != nil {
		return r.Cost.Decimal
	}
	return decimal.Zero
}

// NormalizedDate devolve a data no formato YYYY-MM-DD, ou vazio se inválida
func (r ReportRow) NormalizedDate() string {
	raw := strings.TrimSpace(r.Date)
	if raw == "" {
		raw = strings.TrimSpace(r.Day)
	}
	return NormalizeDate(raw)
}

func NormalizeDate(raw string) string {
	for _, layout := range []string{time.DateOnly, "20060102", time.DateTime} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ""
}

type ReportResponse struct {
	Code utils.FlexInt       `json:"code"`
	Msg  string              `json:"msg"`
	Data jsoniter.RawMessage `json:"data"`
}

func (r ReportResponse) IsRateLimited() bool {
	return r.Code.Int64() == rateLimitCode && strings.Contains(r.Msg, rateLimitMessage)
}

// Rows aceita data como lista ou como mapa indexado pela data
func (r ReportResponse) Rows() ([]ReportRow, error) {
	raw := bytes.TrimSpace(r.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var rows []ReportRow
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	case '{':
		var byDate map[string]ReportRow
		if err := json.Unmarshal(raw, &byDate); err != nil {
			return nil, err
		}

		keys := make([]string, 0, len(byDate))
		for k := range byDate {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		rows := make([]ReportRow, 0, len(byDate))
		for _, k := range keys {
			row := byDate[k]
			if row.Date == "" && row.Day == "" {
				row.Date = k
			}
			rows = append(rows, row)
		}
		return rows, nil
	}

	return nil, fmt.Errorf("formato de relatório não suportado: %.40s", string(raw))
}
