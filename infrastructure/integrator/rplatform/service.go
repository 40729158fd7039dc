package rplatform

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	rdomain "github.com/vfg2006/adstats-sync/infrastructure/integrator/rplatform/domain"
	"github.com/vfg2006/adstats-sync/infrastructure/integrator/rplatform/rclient"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/usecases/aggregating"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

type RIntegrator struct {
	cfg    *config.Config
	Client rclient.Client
}

func New(cfg *config.Config, client rclient.Client) *RIntegrator {
	return &RIntegrator{
		cfg:    cfg,
		Client: client,
	}
}

func (s *RIntegrator) Platform() domain.Platform {
	return domain.PlatformR
}

// FetchDailyStats consulta cada conta em uma chamada própria, quebrando a janela
// em blocos contíguos dentro do limite da plataforma. A falha de uma conta não
// afeta as demais.
func (s *RIntegrator) FetchDailyStats(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
	if len(s.cfg.RPlatform.Credentials) == 0 {
		return nil, fmt.Errorf("%w: nenhuma credencial da plataforma R configurada", domain.ErrCredentialMissing)
	}

	result := domain.NewFetchResult()
	windows := utils.ChunkContiguous(utils.DateRange(req.Start, req.End), s.cfg.RPlatform.MaxSpanDays)

	for _, acc := range req.Accounts {
		slots, unknown := rdomain.ResolveSlots(acc.ConversionDefinition)
		if len(unknown) > 0 {
			logrus.WithFields(logrus.Fields{
				"account_id": acc.ExternalID,
				"unknown":    unknown,
			}).Warn("rplatform: eventos de conversão desconhecidos ignorados")
		}

		for _, window := range windows {
			start, end := window[0], window[len(window)-1]

			items, err := s.fetchWithFailover(ctx, acc, start, end)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"account_id": acc.ExternalID,
					"start_date": start.Format(time.DateOnly),
					"end_date":   end.Format(time.DateOnly),
					"error":      err.Error(),
				}).Error("rplatform: falha ao obter relatório da conta")
				result.Fail(acc.ExternalID, err)
				break
			}

			aggregating.Merge(result.Stats, aggregating.Aggregate(s.normalize(acc, items, slots)))
		}
	}

	return result, nil
}

// fetchWithFailover tenta as credenciais em ordem e devolve o primeiro sucesso.
// Se todas falharem, o último erro é retornado.
func (s *RIntegrator) fetchWithFailover(ctx context.Context, acc *domain.AdAccount, start, end time.Time) ([]rdomain.ReportItem, error) {
	var lastErr error

	for _, cred := range s.credentialsFor(acc) {
		items, err := s.Client.GetReport(ctx, cred, []string{acc.ExternalID}, start, end)
		if err == nil {
			return items, nil
		}

		lastErr = err
		logrus.WithFields(logrus.Fields{
			"account_id":      acc.ExternalID,
			"credential_user": cred.UserID,
		}).WithError(err).Warn("rplatform: credencial falhou, tentando a próxima")

		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// credentialsFor coloca a credencial do agente da conta na frente das demais
func (s *RIntegrator) credentialsFor(acc *domain.AdAccount) []config.RCredential {
	creds := s.cfg.RPlatform.Credentials
	agent := acc.AgentID()
	if agent == "" {
		return creds
	}

	ordered := make([]config.RCredential, 0, len(creds))
	for _, c := range creds {
		if c.UserID == agent {
			ordered = append(ordered, c)
		}
	}
	for _, c := range creds {
		if c.UserID != agent {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

// normalize converte as linhas da plataforma em itens atribuídos à conta consultada
func (s *RIntegrator) normalize(acc *domain.AdAccount, items []rdomain.ReportItem, slots []string) []domain.LineItem {
	lineItems := make([]domain.LineItem, 0, len(items))

	for _, item := range items {
		accountID := item.UserID.String()
		if accountID == "" {
			accountID = acc.ExternalID
		}
		if accountID != acc.ExternalID {
			logrus.WithFields(logrus.Fields{
				"account_id":  acc.ExternalID,
				"returned_id": accountID,
				"date":        item.Day,
			}).Warn("rplatform: linha de outra conta descartada")
			continue
		}

		lineItems = append(lineItems, domain.LineItem{
			AccountID: accountID,
			Date:      item.Day,
			Metrics: domain.Metrics{
				Spend:       item.PaymentRevenue.Decimal,
				Impressions: item.Impression.Int64(),
				Clicks:      item.Click.Int64(),
				Conversions: item.Conversions(slots),
			},
		})
	}

	return lineItems
}
