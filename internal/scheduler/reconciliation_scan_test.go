package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/pkg/utils"
	"go.uber.org/mock/gomock"
)

func (f *syncFixture) newScanService(cfg *config.Config) *ReconciliationScanService {
	if cfg == nil {
		cfg = testConfig()
	}
	svc := NewReconciliationScanService(f.registry, f.credentials, f.store, f.adapters(), nil, nil, cfg)
	svc.engine.sleep = noSleep
	svc.now = func() time.Time { return time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC) }
	return svc
}

// windowRecorder registra as janelas pedidas ao adaptador
type windowRecorder struct {
	mu      sync.Mutex
	windows []string
}

func (w *windowRecorder) fetch(_ context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
	w.mu.Lock()
	w.windows = append(w.windows, req.Start.Format(time.DateOnly)+".."+req.End.Format(time.DateOnly))
	w.mu.Unlock()

	result := domain.NewFetchResult()
	for _, acc := range req.Accounts {
		for _, d := range utils.DateRange(req.Start, req.End) {
			result.Stats[domain.NewStatKey(acc.ExternalID, d)] = spend("1.00", 1)
		}
	}
	return result, nil
}

func (w *windowRecorder) sorted() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := append([]string(nil), w.windows...)
	sort.Strings(out)
	return out
}

func TestReconciliationScan_MissingDates(t *testing.T) {
	f := newSyncFixture(t)
	acc := rAccount("acc-r1", "R-1", "2024-03-01")

	for _, d := range utils.DateRange(date("2024-03-01"), date("2024-03-10")) {
		if d.Day() == 4 || d.Day() == 7 {
			continue
		}
		f.store.existing["acc-r1"] = append(f.store.existing["acc-r1"], d)
	}

	svc := f.newScanService(nil)
	missing, err := svc.MissingDates(context.Background(), acc, date("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date("2024-03-04"), date("2024-03-07")}, missing)
}

func TestReconciliationScan_MissingDates_Window(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		floor    string
		expected int
	}{
		{name: "desde o início da conta", start: "2024-03-01", expected: 10},
		{name: "data mínima posterior ao início", start: "2024-01-01", floor: "2024-03-06", expected: 5},
		{name: "data mínima anterior ao início", start: "2024-03-08", floor: "2024-01-01", expected: 3},
		{name: "conta encerrada antes de ontem continua até ontem", start: "2024-03-01", end: "2024-03-05", expected: 10},
		{name: "data mínima com conta encerrada", start: "2024-01-01", end: "2024-02-01", floor: "2024-03-06", expected: 5},
		{name: "conta que ainda não começou", start: "2024-04-01", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSyncFixture(t)
			acc := rAccount("acc-r1", "R-1", tt.start)
			if tt.end != "" {
				end := date(tt.end)
				acc.EndDate = &end
			}

			cfg := testConfig()
			cfg.ReconciliationScan.FloorDate = tt.floor

			missing, err := f.newScanService(cfg).MissingDates(context.Background(), acc, date("2024-03-10"))
			require.NoError(t, err)
			assert.Len(t, missing, tt.expected)
		})
	}
}

func TestReconciliationScan_Run_NoGaps(t *testing.T) {
	f := newSyncFixture(t)
	acc := rAccount("acc-r1", "R-1", "2024-03-01")
	f.store.existing["acc-r1"] = utils.DateRange(date("2024-03-01"), date("2024-03-10"))

	f.registry.EXPECT().ListActive(gomock.Any(), gomock.Nil(), "").Return([]*domain.AdAccount{acc}, nil)

	summary, err := f.newScanService(nil).Run(context.Background(), ScanOptions{}, f.events.emit)
	require.NoError(t, err)

	assert.Empty(t, f.events.ofKind(domain.EventKindBackfill))
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Rows)
	assert.Equal(t, 0, f.store.upserts)
	assert.True(t, f.events.last().Done)
}

func TestReconciliationScan_Run_ChunksRPlatformGaps(t *testing.T) {
	f := newSyncFixture(t)
	acc := rAccount("acc-r1", "R-1", "2024-03-01")

	recorder := &windowRecorder{}
	f.registry.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*domain.AdAccount{acc}, nil)
	f.rAdapter.EXPECT().FetchDailyStats(gomock.Any(), gomock.Any()).DoAndReturn(recorder.fetch).Times(2)

	summary, err := f.newScanService(nil).Run(context.Background(), ScanOptions{}, f.events.emit)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03-01..2024-03-07", "2024-03-08..2024-03-10"}, recorder.sorted())
	assert.Equal(t, 10, summary.Rows)
	assert.Equal(t, 10, f.store.count())
	assert.Equal(t, 1, summary.Succeeded)

	backfill := f.events.ofKind(domain.EventKindBackfill)
	require.Len(t, backfill, 3)
	assert.Contains(t, backfill[0].Message, "10 data(s) ausente(s)")
	assert.Contains(t, backfill[1].Message, "7 linha(s) preenchida(s)")
	assert.Contains(t, backfill[2].Message, "3 linha(s) preenchida(s)")
}

func TestReconciliationScan_Run_DPlatformOneDateAtATime(t *testing.T) {
	f := newSyncFixture(t)
	acc := dAccount("acc-d1", "D-1", "2024-03-01")

	existing := utils.DateRange(date("2024-03-01"), date("2024-03-10"))
	f.store.existing["acc-d1"] = append(append([]time.Time{}, existing[:2]...), existing[5:8]...)

	recorder := &windowRecorder{}
	f.registry.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*domain.AdAccount{acc}, nil)
	f.credentials.EXPECT().TokenFor(gomock.Any(), acc).Return("d-token", nil)
	f.dAdapter.EXPECT().
		FetchDailyStats(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
			assert.Equal(t, "d-token", req.Credential)
			return recorder.fetch(ctx, req)
		}).
		Times(5)

	summary, err := f.newScanService(nil).Run(context.Background(), ScanOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"2024-03-03..2024-03-03",
		"2024-03-04..2024-03-04",
		"2024-03-05..2024-03-05",
		"2024-03-09..2024-03-09",
		"2024-03-10..2024-03-10",
	}, recorder.sorted())
	assert.Equal(t, 5, summary.Rows)
}

func TestReconciliationScan_Run_DPlatformWithoutCredential(t *testing.T) {
	f := newSyncFixture(t)
	acc := dAccount("acc-d1", "D-1", "2024-03-09")

	f.registry.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*domain.AdAccount{acc}, nil)
	f.credentials.EXPECT().TokenFor(gomock.Any(), acc).Return("", domain.ErrCredentialMissing)

	summary, err := f.newScanService(nil).Run(context.Background(), ScanOptions{}, f.events.emit)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, f.store.count())

	backfill := f.events.ofKind(domain.EventKindBackfill)
	require.Len(t, backfill, 2)
	assert.True(t, backfill[1].Error)
}

func TestReconciliationScan_Run_FailedChunkKeepsGap(t *testing.T) {
	f := newSyncFixture(t)
	acc := rAccount("acc-r1", "R-1", "2024-03-01")

	f.registry.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*domain.AdAccount{acc}, nil)
	f.rAdapter.EXPECT().
		FetchDailyStats(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
			if req.Start.Equal(date("2024-03-01")) {
				result := domain.NewFetchResult()
				result.Fail("R-1", domain.ErrDataShape)
				return result, nil
			}
			return (&windowRecorder{}).fetch(ctx, req)
		}).
		Times(2)

	svc := f.newScanService(nil)
	summary, err := svc.Run(context.Background(), ScanOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Rows)

	missing, err := svc.MissingDates(context.Background(), acc, date("2024-03-10"))
	require.NoError(t, err)
	assert.Len(t, missing, 7, "o bloco com falha continua pendente para a próxima varredura")
}

func TestReconciliationScan_Run_EndedAccountFilledThroughYesterday(t *testing.T) {
	f := newSyncFixture(t)
	acc := rAccount("acc-r1", "R-1", "2024-03-01")
	end := date("2024-03-05")
	acc.EndDate = &end

	svc := f.newScanService(nil)
	missing, err := svc.MissingDates(context.Background(), acc, date("2024-03-10"))
	require.NoError(t, err)
	require.Len(t, missing, 10)
	assert.Equal(t, date("2024-03-01"), missing[0])
	assert.Equal(t, date("2024-03-10"), missing[9])

	recorder := &windowRecorder{}
	f.registry.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*domain.AdAccount{acc}, nil)
	f.rAdapter.EXPECT().FetchDailyStats(gomock.Any(), gomock.Any()).DoAndReturn(recorder.fetch).Times(2)

	summary, err := svc.Run(context.Background(), ScanOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Rows)
	assert.NotNil(t, f.store.row("acc-r1", "2024-03-10"), "gasto após end_date também é gravado")
}

func TestReconciliationScan_Run_RPlatformWithoutCredentials(t *testing.T) {
	f := newSyncFixture(t)
	r1 := rAccount("acc-r1", "R-1", "2024-03-01")
	r2 := rAccount("acc-r2", "R-2", "2024-03-01")

	cfg := testConfig()
	cfg.RPlatform.Credentials = nil

	f.registry.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*domain.AdAccount{r1, r2}, nil)

	summary, err := f.newScanService(cfg).Run(context.Background(), ScanOptions{}, f.events.emit)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, f.store.upserts)

	backfill := f.events.ofKind(domain.EventKindBackfill)
	require.Len(t, backfill, 2, "um único evento por conta")
	for _, ev := range backfill {
		assert.True(t, ev.Error)
		assert.Contains(t, ev.Message, "sem credencial da plataforma R")
	}
}

func TestReconciliationScan_Run_StoreUnavailable(t *testing.T) {
	f := newSyncFixture(t)
	f.store.err = errors.New("too many connections")

	f.registry.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*domain.AdAccount{rAccount("acc-r1", "R-1", "2024-03-01")}, nil)

	summary, err := f.newScanService(nil).Run(context.Background(), ScanOptions{}, f.events.emit)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.True(t, summary.Aborted)
	assert.Len(t, f.events.ofKind(domain.EventKindCritical), 1)
}

func TestReconciliationScan_GetStatus(t *testing.T) {
	f := newSyncFixture(t)
	cfg := testConfig()
	cfg.ReconciliationScan.FloorDate = "2024-01-01"

	status := f.newScanService(cfg).GetStatus()
	assert.Equal(t, "2024-01-01", status["floor_date"])
	assert.Equal(t, 2, status["account_workers"])
	assert.Equal(t, false, status["running"])
}
