package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/metrics"
	"github.com/vfg2006/adstats-sync/internal/usecases/syncing"
	"github.com/vfg2006/adstats-sync/pkg/log"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

// statsEngine busca e grava unidades de trabalho. É compartilhado pela
// sincronização diária e pela reconciliação.
type statsEngine struct {
	run         string
	adapters    map[domain.Platform]syncing.PlatformAdapter
	store       syncing.StatsStore
	metrics     *metrics.Metrics
	maxAttempts int
	retryDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func newStatsEngine(
	run string,
	adapters []syncing.PlatformAdapter,
	store syncing.StatsStore,
	m *metrics.Metrics,
	maxAttempts int,
	retryDelay time.Duration,
) *statsEngine {
	byPlatform := make(map[domain.Platform]syncing.PlatformAdapter, len(adapters))
	for _, a := range adapters {
		byPlatform[a.Platform()] = a
	}

	if m == nil {
		m = metrics.NewNop()
	}

	return &statsEngine{
		run:         run,
		adapters:    byPlatform,
		store:       store,
		metrics:     m,
		maxAttempts: max(maxAttempts, 1),
		retryDelay:  retryDelay,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// syncUnits conduz unidades da mesma plataforma, janela e credencial pela
// máquina de estados. Cada tentativa faz uma chamada ao adaptador com as
// unidades pendentes e grava imediatamente as que tiveram sucesso, inclusive
// as datas sem dados, que viram linhas zeradas. Unidades com erro
// recuperável voltam a PENDING e são tentadas de novo até maxAttempts; as
// demais ficam em PENDING com LastErr para a próxima varredura. Retorna o
// número de linhas gravadas e o erro fatal, se houver.
func (e *statsEngine) syncUnits(ctx context.Context, credential string, units []*domain.WorkUnit) (int, error) {
	if len(units) == 0 {
		return 0, nil
	}

	platform := units[0].Account.Platform
	adapter, ok := e.adapters[platform]
	if !ok {
		return 0, fmt.Errorf("nenhum adaptador registrado para a plataforma %s", platform)
	}

	rows := 0
	pending := units

	for len(pending) > 0 {
		for _, u := range pending {
			if err := u.Transition(domain.UnitStateFetching); err != nil {
				return rows, err
			}
		}

		errs, written := e.attempt(ctx, adapter, credential, pending)
		rows += written

		var fatal error
		retry := make([]*domain.WorkUnit, 0, len(pending))

		for _, u := range pending {
			err := errs[u]
			if err == nil {
				if err := u.Transition(domain.UnitStateSuccess); err != nil {
					return rows, err
				}
				u.LastErr = nil
				e.metrics.RecordUnit(e.run, string(platform), metrics.OutcomeSuccess)
				continue
			}

			u.LastErr = err
			if err := u.Transition(domain.UnitStateFailed); err != nil {
				return rows, err
			}
			if err := u.Transition(domain.UnitStatePending); err != nil {
				return rows, err
			}

			if domain.IsFatal(err) && fatal == nil {
				fatal = err
			}

			if domain.IsRetryable(err) && u.Attempts < e.maxAttempts {
				e.metrics.RecordUnit(e.run, string(platform), metrics.OutcomeRetried)
				retry = append(retry, u)
				continue
			}

			e.metrics.RecordUnit(e.run, string(platform), metrics.OutcomeFailed)
		}

		if fatal != nil {
			return rows, fatal
		}
		if len(retry) == 0 {
			break
		}

		log.ForContext(ctx).WithFields(log.Fields{
			"run":      e.run,
			"platform": platform,
			"units":    len(retry),
		}).Debug("Nova tentativa das unidades com falha recuperável")

		if err := e.sleep(ctx, e.retryDelay); err != nil {
			return rows, err
		}
		pending = retry
	}

	return rows, nil
}

func (e *statsEngine) attempt(ctx context.Context, adapter syncing.PlatformAdapter, credential string, pending []*domain.WorkUnit) (map[*domain.WorkUnit]error, int) {
	errs := make(map[*domain.WorkUnit]error, len(pending))

	accounts := make([]*domain.AdAccount, 0, len(pending))
	for _, u := range pending {
		accounts = append(accounts, u.Account)
	}

	result, err := adapter.FetchDailyStats(ctx, domain.FetchRequest{
		Accounts:   accounts,
		Start:      pending[0].Start,
		End:        pending[0].End,
		Credential: credential,
	})
	if err != nil {
		for _, u := range pending {
			errs[u] = err
		}
		return errs, 0
	}

	written := 0
	for _, u := range pending {
		if ferr := result.FailedFor(u.Account.ExternalID); ferr != nil {
			errs[u] = ferr
			continue
		}

		n, werr := e.persist(ctx, u, result)
		written += n
		if werr != nil {
			errs[u] = werr
		}
	}

	return errs, written
}

// persist grava uma linha por data da unidade; data sem dados vira linha zerada
func (e *statsEngine) persist(ctx context.Context, u *domain.WorkUnit, result *domain.FetchResult) (int, error) {
	written := 0

	for _, date := range utils.DateRange(u.Start, u.End) {
		stat := &domain.DailyStat{
			AccountID:  u.Account.ID,
			ExternalID: u.Account.ExternalID,
			Date:       date,
			Metrics:    result.MetricsFor(u.Account.ExternalID, date),
		}

		if err := e.store.Upsert(ctx, stat); err != nil {
			return written, domain.NewSyncError(domain.ErrStoreUnavailable, u.Account.ExternalID, date.Format(time.DateOnly), err)
		}

		written++
		e.metrics.RecordUpsert(e.run, string(u.Account.Platform))
	}

	return written, nil
}

// tally acumula o resumo de uma execução a partir de vários workers
type tally struct {
	mu      sync.Mutex
	summary domain.RunSummary
}

func newTally(runID string, accounts int) *tally {
	return &tally{summary: domain.RunSummary{RunID: runID, Accounts: accounts}}
}

func (t *tally) add(fn func(s *domain.RunSummary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.summary)
}

func (t *tally) snapshot() *domain.RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.summary
	return &s
}
