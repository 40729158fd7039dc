package dclient

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ddomain "github.com/vfg2006/adstats-sync/infrastructure/integrator/dplatform/domain"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

const (
	campaignListPath = "/discovery/api/v2/campaign/lists"
	adListPath       = "/discovery/api/v2/ad/%s/lists"
	reportPath       = "/discovery/api/v2/ad/%s/%s/%s/%s/date_reporting"
)

func (c *DClient) ListCampaigns(ctx context.Context, credential string) ([]ddomain.Campaign, error) {
	params := url.Values{}
	params.Add("country_id", c.cfg.Country)

	body, err := c.authorizedGet(ctx, credential, "campaign_list", c.cfg.BaseURL+campaignListPath+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	return decodeList[ddomain.Campaign](body)
}

func (c *DClient) ListAds(ctx context.Context, credential, campaignID string) ([]ddomain.Ad, error) {
	endpoint := fmt.Sprintf(adListPath, url.PathEscape(campaignID))

	body, err := c.authorizedGet(ctx, credential, "ad_list", c.cfg.BaseURL+endpoint)
	if err != nil {
		return nil, err
	}

	return decodeList[ddomain.Ad](body)
}

func decodeList[T any](body []byte) ([]T, error) {
	var response ddomain.ListResponse[T]
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataShape, err)
	}

	if code := response.Code.Int64(); code != 0 {
		return nil, fmt.Errorf("listagem retornou código %d: %s", code, response.Msg)
	}

	return response.Data, nil
}

// GetReport busca o relatório diário de um anúncio. Limite de requisições e
// falhas transitórias são tentados de novo até ReportMaxAttempts, com uma
// pausa fixa entre tentativas; esgotadas as tentativas, o último erro volta.
func (c *DClient) GetReport(ctx context.Context, credential, campaignID, adID string, start, end time.Time) ([]ddomain.ReportRow, error) {
	maxAttempts := max(c.cfg.ReportMaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		rows, err := c.getReport(ctx, credential, campaignID, adID, start, end)
		if err == nil {
			return rows, nil
		}

		if errors.Is(err, domain.ErrRateLimit) && c.metrics != nil {
			c.metrics.RecordRateLimit(string(domain.PlatformD))
		}

		if !domain.IsRetryable(err) || attempt >= maxAttempts {
			return nil, err
		}

		logrus.WithFields(logrus.Fields{
			"campaign_id": campaignID,
			"ad_id":       adID,
			"attempt":     attempt,
		}).WithError(err).Debug("dplatform: nova tentativa do relatório")

		if err := c.Sleep(ctx, c.cfg.RateLimitSleep); err != nil {
			return nil, err
		}
	}
}

func (c *DClient) getReport(ctx context.Context, credential, campaignID, adID string, start, end time.Time) ([]ddomain.ReportRow, error) {
	endpoint := fmt.Sprintf(reportPath,
		url.PathEscape(campaignID),
		url.PathEscape(adID),
		utils.FormatCompact(start),
		utils.FormatCompact(end),
	)

	body, err := c.authorizedGet(ctx, credential, "report", c.cfg.BaseURL+endpoint)
	if err != nil {
		return nil, err
	}

	var response ddomain.ReportResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataShape, err)
	}

	if response.IsRateLimited() {
		return nil, fmt.Errorf("%w: %s", domain.ErrRateLimit, response.Msg)
	}
	if code := response.Code.Int64(); code != 0 {
		return nil, fmt.Errorf("relatório retornou código %d: %s", code, response.Msg)
	}

	rows, err := response.Rows()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataShape, err)
	}

	return rows, nil
}
