package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/internal/domain"
)

// RunLocker impede execuções simultâneas do mesmo tipo entre réplicas
type RunLocker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error)
}

// runGuard garante uma execução por vez de cada tipo e guarda o histórico
// da última execução para o status
type runGuard struct {
	name   string
	ttl    time.Duration
	locker RunLocker

	mu              sync.Mutex
	running         bool
	lastStartedAt   time.Time
	lastCompletedAt time.Time
	lastSummary     *domain.RunSummary
}

func newRunGuard(name string, ttl time.Duration, locker RunLocker) *runGuard {
	return &runGuard{name: name, ttl: ttl, locker: locker}
}

// acquire reserva a execução. A função devolvida libera a reserva e registra o resumo.
func (g *runGuard) acquire(ctx context.Context) (func(*domain.RunSummary), error) {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil, domain.ErrRunInProgress
	}
	g.running = true
	g.lastStartedAt = time.Now()
	g.mu.Unlock()

	releaseLock := func() {}
	if g.locker != nil {
		release, ok, err := g.locker.TryLock(ctx, g.name, g.ttl)
		switch {
		case err != nil:
			logrus.WithError(err).WithField("run", g.name).Warn("Lock distribuído indisponível, seguindo apenas com o lock local")
		case !ok:
			g.mu.Lock()
			g.running = false
			g.mu.Unlock()
			return nil, domain.ErrRunInProgress
		default:
			releaseLock = release
		}
	}

	return func(summary *domain.RunSummary) {
		releaseLock()

		g.mu.Lock()
		defer g.mu.Unlock()
		g.running = false
		g.lastCompletedAt = time.Now()
		g.lastSummary = summary
	}, nil
}

func (g *runGuard) isRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *runGuard) status() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()

	return map[string]any{
		"running":           g.running,
		"last_started_at":   g.lastStartedAt,
		"last_completed_at": g.lastCompletedAt,
		"last_summary":      g.lastSummary,
	}
}
