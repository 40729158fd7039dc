package rclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	rdomain "github.com/vfg2006/adstats-sync/infrastructure/integrator/rplatform/domain"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/metrics"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client consulta o relatório diário da plataforma R. A plataforma só atribui
// as linhas a uma conta quando a chamada contém exatamente um user_id; chamadas
// com várias contas servem apenas como otimização sem garantia de atribuição.
type Client interface {
	GetReport(ctx context.Context, cred config.RCredential, accountIDs []string, start, end time.Time) ([]rdomain.ReportItem, error)
}

type RClient struct {
	cfg        config.RPlatform
	HTTPClient utils.HTTPDoer
	metrics    *metrics.Metrics
}

func NewClient(cfg *config.Config, m *metrics.Metrics) Client {
	return &RClient{
		cfg:        cfg.RPlatform,
		HTTPClient: &http.Client{Timeout: cfg.RPlatform.Timeout},
		metrics:    m,
	}
}

func (c *RClient) GetReport(ctx context.Context, cred config.RCredential, accountIDs []string, start, end time.Time) ([]rdomain.ReportItem, error) {
	span := int(end.Sub(start).Hours()/24) + 1
	if c.cfg.MaxSpanDays > 0 && span > c.cfg.MaxSpanDays {
		return nil, fmt.Errorf("%w: %d dias (máximo %d)", domain.ErrSpanTooLarge, span, c.cfg.MaxSpanDays)
	}

	params := url.Values{}
	params.Add("start_date", start.Format(time.DateOnly))
	params.Add("end_date", end.Format(time.DateOnly))
	params.Add("timezone", c.cfg.Timezone)
	params.Add("currency", c.cfg.Currency)
	params.Add("dimensions[]", "day")
	params.Add("dimensions[]", "user_id")
	params.Add("x-userid", cred.UserID)
	params.Add("x-authorization", cred.Token)
	for _, id := range accountIDs {
		params.Add("user_id[]", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "erro ao criar a requisição")
	}

	started := time.Now()
	items, err := c.do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstream(string(domain.PlatformR), "report", started, err)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"credential_user": cred.UserID,
			"accounts":        accountIDs,
			"start_date":      start.Format(time.DateOnly),
			"end_date":        end.Format(time.DateOnly),
		}).WithError(err).Debug("rplatform: falha ao consultar relatório")
		return nil, err
	}

	return items, nil
}

func (c *RClient) do(req *http.Request) ([]rdomain.ReportItem, error) {
	status, body, err := utils.MakeRequest(c.HTTPClient, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", domain.ErrAuth, status)
	case utils.IsServerError(status):
		return nil, fmt.Errorf("%w: status %d", domain.ErrTransientNetwork, status)
	case status != http.StatusOK:
		return nil, fmt.Errorf("erro na resposta da API. Status: %d, Corpo: %s", status, string(body))
	}

	var response rdomain.ReportResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataShape, err)
	}

	if code := response.Status.Code.Int64(); code != rdomain.StatusOK {
		apiErr := &rdomain.APIError{Code: code, Message: response.Status.Message}
		if code == rdomain.StatusUpstreamFail {
			return nil, fmt.Errorf("%w: %w", domain.ErrTransientNetwork, apiErr)
		}
		return nil, apiErr
	}

	return response.Data.Data, nil
}
