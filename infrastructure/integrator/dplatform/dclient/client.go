package dclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ddomain "github.com/vfg2006/adstats-sync/infrastructure/integrator/dplatform/domain"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/metrics"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client percorre a hierarquia campanha, anúncio e relatório diário da
// plataforma D. A credencial é o token de longa duração da conta.
type Client interface {
	ListCampaigns(ctx context.Context, credential string) ([]ddomain.Campaign, error)
	ListAds(ctx context.Context, credential, campaignID string) ([]ddomain.Ad, error)
	GetReport(ctx context.Context, credential, campaignID, adID string, start, end time.Time) ([]ddomain.ReportRow, error)
}

type DClient struct {
	cfg        config.DPlatform
	HTTPClient utils.HTTPDoer
	Tokens     *TokenManager
	metrics    *metrics.Metrics
	Sleep      func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg *config.Config, cache SessionCache, m *metrics.Metrics) Client {
	httpClient := &http.Client{Timeout: cfg.DPlatform.Timeout}

	return &DClient{
		cfg:        cfg.DPlatform,
		HTTPClient: httpClient,
		Tokens:     NewTokenManager(cfg.DPlatform, httpClient, cache, m),
		metrics:    m,
		Sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// authorizedGet executa um GET com o token de sessão. Um 401 descarta a sessão
// e refaz a autenticação uma única vez; se repetir, a falha é de credencial.
func (c *DClient) authorizedGet(ctx context.Context, credential, endpoint, url string) ([]byte, error) {
	started := time.Now()
	body, err := c.doAuthorized(ctx, credential, url)
	if c.metrics != nil {
		c.metrics.RecordUpstream(string(domain.PlatformD), endpoint, started, err)
	}
	return body, err
}

func (c *DClient) doAuthorized(ctx context.Context, credential, url string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		token, err := c.Tokens.Token(ctx, credential)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "erro ao criar a requisição")
		}
		req.Header.Set("Authorization", "Bearer "+token)

		status, body, err := utils.MakeRequest(c.HTTPClient, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
		}

		if status == http.StatusUnauthorized {
			c.Tokens.Invalidate(ctx, credential, token)
			if attempt >= 2 {
				return nil, fmt.Errorf("%w: sessão recusada após nova autenticação", domain.ErrAuth)
			}
			logrus.Debug("dplatform: sessão recusada, autenticando novamente")
			if c.metrics != nil {
				c.metrics.RecordSessionRefresh(string(domain.PlatformD), "unauthorized")
			}
			continue
		}

		switch {
		case status == http.StatusForbidden:
			return nil, fmt.Errorf("%w: status %d", domain.ErrAuth, status)
		case utils.IsServerError(status):
			return nil, fmt.Errorf("%w: status %d", domain.ErrTransientNetwork, status)
		case status != http.StatusOK:
			return nil, fmt.Errorf("erro na resposta da API. Status: %d, Corpo: %s", status, string(body))
		}

		return body, nil
	}
}
