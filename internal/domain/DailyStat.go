package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metrics são os valores diários de performance de uma conta
type Metrics struct {
	Spend       decimal.Decimal `json:"spend"`
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Conversions int64           `json:"conversions"`
}

// Add soma duas métricas sem alterar nenhuma delas
func (m Metrics) Add(other Metrics) Metrics {
	return Metrics{
		Spend:       m.Spend.Add(other.Spend),
		Impressions: m.Impressions + other.Impressions,
		Clicks:      m.Clicks + other.Clicks,
		Conversions: m.Conversions + other.Conversions,
	}
}

func (m Metrics) IsZero() bool {
	return m.Spend.IsZero() && m.Impressions == 0 && m.Clicks == 0 && m.Conversions == 0
}

// Equal compara as métricas pelo valor numérico do gasto
func (m Metrics) Equal(other Metrics) bool {
	return m.Spend.Equal(other.Spend) &&
		m.Impressions == other.Impressions &&
		m.Clicks == other.Clicks &&
		m.Conversions == other.Conversions
}

// CPC é o custo por clique, zero quando não houve cliques
func (m Metrics) CPC() decimal.Decimal {
	if m.Clicks == 0 {
		return decimal.Zero
	}
	return m.Spend.Div(decimal.NewFromInt(m.Clicks)).Round(2)
}

// CPA é o custo por conversão, zero quando não houve conversões
func (m Metrics) CPA() decimal.Decimal {
	if m.Conversions == 0 {
		return decimal.Zero
	}
	return m.Spend.Div(decimal.NewFromInt(m.Conversions)).Round(2)
}

// StatKey identifica uma linha diária pelo id externo da conta e pela data (YYYY-MM-DD)
type StatKey struct {
	AccountID string
	Date      string
}

func NewStatKey(accountID string, date time.Time) StatKey {
	return StatKey{AccountID: accountID, Date: date.Format(time.DateOnly)}
}

// LineItem é um item de relatório já normalizado pelo adaptador da plataforma
type LineItem struct {
	AccountID string
	Date      string
	Metrics   Metrics
}

type DailyStat struct {
	ID         int64     `json:"-"`
	AccountID  string    `json:"account_id"`
	ExternalID string    `json:"external_id"`
	Date       time.Time `json:"date"`
	Metrics
	UpdatedAt time.Time `json:"updated_at"`
}

type DailyStatResponse struct {
	Date        string          `json:"date"`
	Spend       decimal.Decimal `json:"spend"`
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Conversions int64           `json:"conversions"`
	CPC         decimal.Decimal `json:"cpc"`
	CPA         decimal.Decimal `json:"cpa"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewDailyStatResponse(stat *DailyStat) *DailyStatResponse {
	return &DailyStatResponse{
		Date:        stat.Date.Format(time.DateOnly),
		Spend:       stat.Spend,
		Impressions: stat.Impressions,
		Clicks:      stat.Clicks,
		Conversions: stat.Conversions,
		CPC:         stat.CPC(),
		CPA:         stat.CPA(),
		UpdatedAt:   stat.UpdatedAt,
	}
}
