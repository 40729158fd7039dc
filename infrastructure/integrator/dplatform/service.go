package dplatform

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/infrastructure/integrator/dplatform/dclient"
	ddomain "github.com/vfg2006/adstats-sync/infrastructure/integrator/dplatform/domain"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/usecases/aggregating"
	"github.com/vfg2006/adstats-sync/pkg/workerpool"
)

var errNotDispatched = fmt.Errorf("%w: tarefa não despachada por cancelamento", domain.ErrTransientNetwork)

type DIntegrator struct {
	cfg    *config.Config
	Client dclient.Client
}

func New(cfg *config.Config, client dclient.Client) *DIntegrator {
	return &DIntegrator{
		cfg:    cfg,
		Client: client,
	}
}

func (s *DIntegrator) Platform() domain.Platform {
	return domain.PlatformD
}

// partial é o resultado isolado de um anúncio, enviado ao coletor
type partial struct {
	accountID string
	stats     map[domain.StatKey]domain.Metrics
	err       error
}

type adTask struct {
	accountID  string
	campaignID string
	adID       string
}

// FetchDailyStats percorre campanhas, anúncios e relatórios de todas as contas
// que compartilham a credencial do pedido. A listagem de anúncios e os
// relatórios rodam em pools próprios e limitados; cada tarefa devolve um
// resultado parcial que um único coletor agrega. Uma conta com qualquer
// anúncio abandonado é reportada como falha.
func (s *DIntegrator) FetchDailyStats(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
	if req.Credential == "" {
		return nil, domain.ErrCredentialMissing
	}

	campaigns, err := s.Client.ListCampaigns(ctx, req.Credential)
	if err != nil {
		logrus.WithError(err).WithField("accounts", len(req.Accounts)).Error("dplatform: falha ao listar campanhas")
		return nil, fmt.Errorf("erro ao listar campanhas: %w", err)
	}

	result := domain.NewFetchResult()
	selected := s.selectCampaigns(req, campaigns)

	partials := make(chan partial)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for p := range partials {
			if p.err != nil {
				result.Fail(p.accountID, p.err)
				continue
			}
			aggregating.Merge(result.Stats, p.stats)
		}
	}()

	listPool := workerpool.New(ctx, s.cfg.DPlatform.ListWorkers)
	reportPool := workerpool.New(ctx, s.cfg.DPlatform.ReportWorkers)

	for _, c := range selected {
		dispatched := listPool.Go(func() {
			ads, err := s.Client.ListAds(ctx, req.Credential, c.campaignID)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"account_id":  c.accountID,
					"campaign_id": c.campaignID,
				}).WithError(err).Error("dplatform: falha ao listar anúncios")
				partials <- partial{accountID: c.accountID, err: err}
				return
			}

			for _, ad := range ads {
				task := adTask{accountID: c.accountID, campaignID: c.campaignID, adID: ad.MongoID.String()}
				if task.adID == "" {
					continue
				}
				if !reportPool.Go(func() { partials <- s.fetchAd(ctx, req, task) }) {
					partials <- partial{accountID: task.accountID, err: errNotDispatched}
				}
			}
		})
		if !dispatched {
			partials <- partial{accountID: c.accountID, err: errNotDispatched}
		}
	}

	listPool.Wait()
	reportPool.Wait()
	close(partials)
	<-collected

	for accountID := range result.Failed {
		for key := range result.Stats {
			if key.AccountID == accountID {
				delete(result.Stats, key)
			}
		}
	}

	return result, nil
}

// fetchAd busca o relatório de um anúncio e descarta linhas fora da janela
func (s *DIntegrator) fetchAd(ctx context.Context, req domain.FetchRequest, task adTask) partial {
	rows, err := s.Client.GetReport(ctx, req.Credential, task.campaignID, task.adID, req.Start, req.End)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"account_id":  task.accountID,
			"campaign_id": task.campaignID,
			"ad_id":       task.adID,
		}).WithError(err).Warn("dplatform: anúncio abandonado")
		return partial{accountID: task.accountID, err: err}
	}

	first := req.Start.Format(time.DateOnly)
	last := req.End.Format(time.DateOnly)

	items := make([]domain.LineItem, 0, len(rows))
	for _, row := range rows {
		date := row.NormalizedDate()
		if date == "" || date < first || date > last {
			continue
		}

		items = append(items, domain.LineItem{
			AccountID: task.accountID,
			Date:      date,
			Metrics: domain.Metrics{
				Spend:       row.Spend(),
				Impressions: row.Imp.Int64(),
				Clicks:      row.Click.Int64(),
				Conversions: row.CV.Int64(),
			},
		})
	}

	return partial{accountID: task.accountID, stats: aggregating.Aggregate(items)}
}

type campaignRef struct {
	accountID  string
	campaignID string
}

// selectCampaigns resolve a conta de cada campanha e aplica o filtro de relevância
func (s *DIntegrator) selectCampaigns(req domain.FetchRequest, campaigns []ddomain.Campaign) []campaignRef {
	requested := make(map[string]struct{}, len(req.Accounts))
	for _, acc := range req.Accounts {
		requested[acc.ExternalID] = struct{}{}
	}

	grace := time.Duration(s.cfg.DPlatform.CampaignGraceDays) * 24 * time.Hour
	selected := make([]campaignRef, 0, len(campaigns))
	skipped := 0

	for _, c := range campaigns {
		campaignID := c.MongoID.String()
		if campaignID == "" {
			campaignID = c.ID.String()
		}

		accountID := c.AccountID.String()
		if (accountID == "" || accountID == "None") && len(req.Accounts) == 1 {
			accountID = req.Accounts[0].ExternalID
		}
		if _, ok := requested[accountID]; !ok || campaignID == "" {
			logrus.WithFields(logrus.Fields{
				"campaign_id": campaignID,
				"account_id":  accountID,
			}).Debug("dplatform: campanha sem conta solicitada ignorada")
			continue
		}

		if !c.IsRelevant(req.Start, grace) {
			skipped++
			continue
		}

		selected = append(selected, campaignRef{accountID: accountID, campaignID: campaignID})
	}

	logrus.WithFields(logrus.Fields{
		"campaigns": len(campaigns),
		"selected":  len(selected),
		"expired":   skipped,
	}).Debug("dplatform: campanhas selecionadas")

	return selected
}
