package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/usecases/syncing"
	"go.uber.org/mock/gomock"
)

func TestStatsEngine_SyncUnits(t *testing.T) {
	window := date("2024-03-10")

	tests := []struct {
		name      string
		responses []func(req domain.FetchRequest) (*domain.FetchResult, error)
		wantState []domain.UnitState
		wantTries []int
		wantRows  int
	}{
		{
			name: "sucesso na primeira tentativa",
			responses: []func(domain.FetchRequest) (*domain.FetchResult, error){
				func(domain.FetchRequest) (*domain.FetchResult, error) { return domain.NewFetchResult(), nil },
			},
			wantState: []domain.UnitState{domain.UnitStateSuccess, domain.UnitStateSuccess},
			wantTries: []int{1, 1},
			wantRows:  2,
		},
		{
			name: "apenas a unidade com erro recuperável é repetida",
			responses: []func(domain.FetchRequest) (*domain.FetchResult, error){
				func(domain.FetchRequest) (*domain.FetchResult, error) {
					result := domain.NewFetchResult()
					result.Fail("D-2", domain.ErrRateLimit)
					return result, nil
				},
				func(req domain.FetchRequest) (*domain.FetchResult, error) {
					if len(req.Accounts) != 1 || req.Accounts[0].ExternalID != "D-2" {
						return nil, errors.New("lote inesperado")
					}
					return domain.NewFetchResult(), nil
				},
			},
			wantState: []domain.UnitState{domain.UnitStateSuccess, domain.UnitStateSuccess},
			wantTries: []int{1, 2},
			wantRows:  2,
		},
		{
			name: "erro definitivo deixa a unidade pendente",
			responses: []func(domain.FetchRequest) (*domain.FetchResult, error){
				func(domain.FetchRequest) (*domain.FetchResult, error) { return nil, domain.ErrAuth },
			},
			wantState: []domain.UnitState{domain.UnitStatePending, domain.UnitStatePending},
			wantTries: []int{1, 1},
		},
		{
			name: "tentativas esgotadas",
			responses: []func(domain.FetchRequest) (*domain.FetchResult, error){
				func(domain.FetchRequest) (*domain.FetchResult, error) { return nil, domain.ErrTransientNetwork },
				func(domain.FetchRequest) (*domain.FetchResult, error) { return nil, domain.ErrTransientNetwork },
			},
			wantState: []domain.UnitState{domain.UnitStatePending, domain.UnitStatePending},
			wantTries: []int{2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSyncFixture(t)

			call := 0
			f.dAdapter.EXPECT().
				FetchDailyStats(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
					resp := tt.responses[call]
					call++
					return resp(req)
				}).
				Times(len(tt.responses))

			engine := newStatsEngine("test", []syncing.PlatformAdapter{f.dAdapter}, f.store, nil, 2, time.Second)
			var slept []time.Duration
			engine.sleep = func(_ context.Context, d time.Duration) error {
				slept = append(slept, d)
				return nil
			}

			units := []*domain.WorkUnit{
				domain.NewWorkUnit(dAccount("acc-d1", "D-1", "2024-01-01"), window, window),
				domain.NewWorkUnit(dAccount("acc-d2", "D-2", "2024-01-01"), window, window),
			}

			rows, err := engine.syncUnits(context.Background(), "token", units)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, rows)
			assert.Len(t, slept, len(tt.responses)-1)

			for i, u := range units {
				assert.Equal(t, tt.wantState[i], u.State, u.Account.ExternalID)
				assert.Equal(t, tt.wantTries[i], u.Attempts, u.Account.ExternalID)
				if u.State == domain.UnitStatePending {
					assert.Error(t, u.LastErr)
				}
			}
		})
	}
}

func TestStatsEngine_StoreFailureIsFatal(t *testing.T) {
	f := newSyncFixture(t)
	f.store.err = errors.New("disk full")

	f.rAdapter.EXPECT().FetchDailyStats(gomock.Any(), gomock.Any()).Return(domain.NewFetchResult(), nil)

	engine := newStatsEngine("test", []syncing.PlatformAdapter{f.rAdapter}, f.store, nil, 3, 0)
	unit := domain.NewWorkUnit(rAccount("acc-r1", "R-1", "2024-01-01"), date("2024-03-01"), date("2024-03-03"))

	rows, err := engine.syncUnits(context.Background(), "", []*domain.WorkUnit{unit})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.True(t, domain.IsFatal(err))
	assert.Equal(t, 0, rows)
	assert.Equal(t, 1, f.store.upserts, "a primeira falha de escrita encerra a unidade")
}

func TestStatsEngine_UnknownPlatform(t *testing.T) {
	f := newSyncFixture(t)
	engine := newStatsEngine("test", []syncing.PlatformAdapter{f.rAdapter}, f.store, nil, 1, 0)

	unit := domain.NewWorkUnit(dAccount("acc-d1", "D-1", "2024-01-01"), date("2024-03-01"), date("2024-03-01"))
	_, err := engine.syncUnits(context.Background(), "token", []*domain.WorkUnit{unit})
	assert.Error(t, err)
	assert.Equal(t, domain.UnitStatePending, unit.State)
}
