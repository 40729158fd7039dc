package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

// memoryStore guarda as linhas em memória e permite simular falha de escrita
type memoryStore struct {
	mu       sync.Mutex
	rows     map[domain.StatKey]*domain.DailyStat
	existing map[string][]time.Time
	upserts  int
	err      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows:     make(map[domain.StatKey]*domain.DailyStat),
		existing: make(map[string][]time.Time),
	}
}

func (s *memoryStore) Upsert(_ context.Context, stat *domain.DailyStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upserts++
	if s.err != nil {
		return s.err
	}
	s.rows[domain.NewStatKey(stat.AccountID, stat.Date)] = stat
	return nil
}

func (s *memoryStore) ExistingDates(_ context.Context, accountID string, dates []time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	present := make(map[string]bool)
	for _, d := range s.existing[accountID] {
		present[d.Format(time.DateOnly)] = true
	}
	for key := range s.rows {
		if key.AccountID == accountID {
			present[key.Date] = true
		}
	}

	found := make([]time.Time, 0)
	for _, d := range dates {
		if present[d.Format(time.DateOnly)] {
			found = append(found, d)
		}
	}
	return found, nil
}

func (s *memoryStore) row(accountID, date string) *domain.DailyStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[domain.StatKey{AccountID: accountID, Date: date}]
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// eventRecorder coleta os eventos emitidos em uma execução
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (r *eventRecorder) emit(ev domain.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) ofKind(kind domain.EventKind) []domain.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.ProgressEvent, 0)
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) last() domain.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.App{Location: time.UTC},
		RPlatform: config.RPlatform{
			MaxSpanDays: 7,
			Credentials: []config.RCredential{{UserID: "u1", Token: "t1"}},
		},
		DailyStatsSync: config.DailyStatsSync{
			CronSchedule: "0 6 * * *",
			RWorkers:     2,
			DWorkers:     2,
			MaxAttempts:  3,
			LockTTL:      time.Minute,
		},
		ReconciliationScan: config.ReconciliationScan{
			CronSchedule:   "0 8 * * *",
			AccountWorkers: 2,
			MaxAttempts:    2,
			LockTTL:        time.Minute,
		},
	}
}

func noSleep(context.Context, time.Duration) error {
	return nil
}

func date(s string) time.Time {
	d, err := utils.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return *d
}

func rAccount(id, external, start string) *domain.AdAccount {
	return &domain.AdAccount{
		ID:         id,
		Platform:   domain.PlatformR,
		ExternalID: external,
		StartDate:  date(start),
		Status:     domain.AdAccountStatusActive,
	}
}

func dAccount(id, external, start string) *domain.AdAccount {
	acc := rAccount(id, external, start)
	acc.Platform = domain.PlatformD
	return acc
}

func spend(v string, clicks int64) domain.Metrics {
	return domain.Metrics{
		Spend:       decimal.RequireFromString(v),
		Impressions: clicks * 10,
		Clicks:      clicks,
	}
}
