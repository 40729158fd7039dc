package dplatform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ddomain "github.com/vfg2006/adstats-sync/infrastructure/integrator/dplatform/domain"
	"github.com/vfg2006/adstats-sync/infrastructure/integrator/dplatform/mocks"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/pkg/utils"
	"go.uber.org/mock/gomock"
)

const credential = "long-lived"

func testConfig() *config.Config {
	return &config.Config{
		DPlatform: config.DPlatform{
			ListWorkers:       3,
			ReportWorkers:     5,
			CampaignGraceDays: 30,
		},
	}
}

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func flexDecimal(s string) *utils.FlexDecimal {
	return &utils.FlexDecimal{Decimal: decimal.RequireFromString(s)}
}

func row(day, charge string, imp, click, cv int64) ddomain.ReportRow {
	return ddomain.ReportRow{
		Date:   day,
		Charge: flexDecimal(charge),
		Imp:    utils.FlexInt(imp),
		Click:  utils.FlexInt(click),
		CV:     utils.FlexInt(cv),
	}
}

func accounts(ids ...string) []*domain.AdAccount {
	accs := make([]*domain.AdAccount, 0, len(ids))
	for _, id := range ids {
		accs = append(accs, &domain.AdAccount{ExternalID: id, Platform: domain.PlatformD})
	}
	return accs
}

func TestDIntegrator_FetchDailyStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	service := New(testConfig(), client)
	day := date("2024-01-01")

	client.EXPECT().ListCampaigns(gomock.Any(), credential).Return([]ddomain.Campaign{
		{MongoID: "cam1", AccountID: "501", Status: "1"},
		{MongoID: "cam2", AccountID: "502", Status: "1"},
		{MongoID: "cam3", AccountID: "999", Status: "1"},
	}, nil)

	client.EXPECT().ListAds(gomock.Any(), credential, "cam1").Return([]ddomain.Ad{{MongoID: "ad1"}, {MongoID: "ad2"}}, nil)
	client.EXPECT().ListAds(gomock.Any(), credential, "cam2").Return([]ddomain.Ad{{MongoID: "ad3"}}, nil)

	client.EXPECT().GetReport(gomock.Any(), credential, "cam1", "ad1", day, day).
		Return([]ddomain.ReportRow{row("2024-01-01", "10.5", 100, 4, 1)}, nil)
	client.EXPECT().GetReport(gomock.Any(), credential, "cam1", "ad2", day, day).
		Return([]ddomain.ReportRow{
			row("2024-01-01", "2", 50, 1, 0),
			row("2023-12-31", "99", 999, 99, 9),
		}, nil)
	client.EXPECT().GetReport(gomock.Any(), credential, "cam2", "ad3", day, day).
		Return(nil, nil)

	result, err := service.FetchDailyStats(context.Background(), domain.FetchRequest{
		Accounts:   accounts("501", "502"),
		Start:      day,
		End:        day,
		Credential: credential,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Failed)

	got := result.MetricsFor("501", day)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.Spend))
	assert.Equal(t, int64(150), got.Impressions)
	assert.Equal(t, int64(5), got.Clicks)
	assert.Equal(t, int64(1), got.Conversions)

	// Conta sem dados não falha e fica sem linhas
	assert.True(t, result.MetricsFor("502", day).IsZero())
	assert.Len(t, result.Stats, 1)
}

func TestDIntegrator_SkipsExpiredInactiveCampaign(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	service := New(testConfig(), client)
	start := date("2024-03-15")

	client.EXPECT().ListCampaigns(gomock.Any(), credential).Return([]ddomain.Campaign{
		// encerrada há mais de 30 dias
		{MongoID: "old", AccountID: "501", Status: "0", EndDate: "2024-01-31"},
		// encerrada dentro da carência
		{MongoID: "recent", AccountID: "501", Status: "0", EndDate: "2024-02-20 23:59:59"},
		// ativa com data de término antiga
		{MongoID: "active", AccountID: "501", Status: "1", EndDate: "2023-01-01"},
	}, nil)

	client.EXPECT().ListAds(gomock.Any(), credential, "recent").Return([]ddomain.Ad{{MongoID: "ad-r"}}, nil)
	client.EXPECT().ListAds(gomock.Any(), credential, "active").Return(nil, nil)
	client.EXPECT().GetReport(gomock.Any(), credential, "recent", "ad-r", start, start).
		Return([]ddomain.ReportRow{row("2024-03-15", "1", 1, 1, 1)}, nil)

	result, err := service.FetchDailyStats(context.Background(), domain.FetchRequest{
		Accounts:   accounts("501"),
		Start:      start,
		End:        start,
		Credential: credential,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MetricsFor("501", start).Impressions)
}

func TestDIntegrator_FallbackAttribution(t *testing.T) {
	day := date("2024-01-01")

	tests := []struct {
		name      string
		accounts  []*domain.AdAccount
		wantCalls bool
	}{
		{name: "Conta única recebe a campanha sem conta", accounts: accounts("501"), wantCalls: true},
		{name: "Várias contas ignoram a campanha sem conta", accounts: accounts("501", "502"), wantCalls: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			client := mocks.NewMockClient(ctrl)
			service := New(testConfig(), client)

			client.EXPECT().ListCampaigns(gomock.Any(), credential).Return([]ddomain.Campaign{
				{MongoID: "cam1", Status: "1"},
			}, nil)

			if tt.wantCalls {
				client.EXPECT().ListAds(gomock.Any(), credential, "cam1").Return([]ddomain.Ad{{MongoID: "ad1"}}, nil)
				client.EXPECT().GetReport(gomock.Any(), credential, "cam1", "ad1", day, day).
					Return([]ddomain.ReportRow{row("2024-01-01", "3", 30, 3, 0)}, nil)
			}

			result, err := service.FetchDailyStats(context.Background(), domain.FetchRequest{
				Accounts:   tt.accounts,
				Start:      day,
				End:        day,
				Credential: credential,
			})
			require.NoError(t, err)

			if tt.wantCalls {
				assert.Equal(t, int64(30), result.MetricsFor("501", day).Impressions)
			} else {
				assert.Empty(t, result.Stats)
			}
		})
	}
}

func TestDIntegrator_AbandonedAdFailsOnlyItsAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	service := New(testConfig(), client)
	day := date("2024-01-01")

	client.EXPECT().ListCampaigns(gomock.Any(), credential).Return([]ddomain.Campaign{
		{MongoID: "cam1", AccountID: "501", Status: "1"},
		{MongoID: "cam2", AccountID: "502", Status: "1"},
		{MongoID: "cam3", AccountID: "503", Status: "1"},
	}, nil)

	client.EXPECT().ListAds(gomock.Any(), credential, "cam1").Return([]ddomain.Ad{{MongoID: "ad1"}, {MongoID: "ad2"}}, nil)
	client.EXPECT().ListAds(gomock.Any(), credential, "cam2").Return([]ddomain.Ad{{MongoID: "ad3"}}, nil)
	client.EXPECT().ListAds(gomock.Any(), credential, "cam3").Return(nil, domain.ErrTransientNetwork)

	client.EXPECT().GetReport(gomock.Any(), credential, "cam1", "ad1", day, day).
		Return([]ddomain.ReportRow{row("2024-01-01", "1", 10, 1, 0)}, nil)
	client.EXPECT().GetReport(gomock.Any(), credential, "cam1", "ad2", day, day).
		Return(nil, domain.ErrRateLimit)
	client.EXPECT().GetReport(gomock.Any(), credential, "cam2", "ad3", day, day).
		Return([]ddomain.ReportRow{row("2024-01-01", "5", 20, 2, 1)}, nil)

	result, err := service.FetchDailyStats(context.Background(), domain.FetchRequest{
		Accounts:   accounts("501", "502", "503"),
		Start:      day,
		End:        day,
		Credential: credential,
	})
	require.NoError(t, err)

	assert.True(t, errors.Is(result.FailedFor("501"), domain.ErrRateLimit))
	assert.True(t, errors.Is(result.FailedFor("503"), domain.ErrTransientNetwork))
	assert.NoError(t, result.FailedFor("502"))

	// Contas com falha não carregam métricas parciais
	assert.True(t, result.MetricsFor("501", day).IsZero())
	assert.Equal(t, int64(20), result.MetricsFor("502", day).Impressions)
}

func TestDIntegrator_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	service := New(testConfig(), client)

	_, err := service.FetchDailyStats(context.Background(), domain.FetchRequest{Accounts: accounts("501")})
	assert.ErrorIs(t, err, domain.ErrCredentialMissing)

	client.EXPECT().ListCampaigns(gomock.Any(), credential).Return(nil, domain.ErrAuth)
	_, err = service.FetchDailyStats(context.Background(), domain.FetchRequest{
		Accounts:   accounts("501"),
		Credential: credential,
	})
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestDIntegrator_CancelledBeforeDispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	service := New(testConfig(), client)

	ctx, cancel := context.WithCancel(context.Background())
	client.EXPECT().ListCampaigns(gomock.Any(), credential).DoAndReturn(func(context.Context, string) ([]ddomain.Campaign, error) {
		cancel()
		return []ddomain.Campaign{{MongoID: "cam1", AccountID: "501", Status: "1"}}, nil
	})

	result, err := service.FetchDailyStats(ctx, domain.FetchRequest{
		Accounts:   accounts("501"),
		Start:      date("2024-01-01"),
		End:        date("2024-01-01"),
		Credential: credential,
	})
	require.NoError(t, err)
	assert.Error(t, result.FailedFor("501"))
}
