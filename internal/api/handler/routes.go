package handler

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/vfg2006/adstats-sync/internal/api/handler/router"
	"github.com/vfg2006/adstats-sync/internal/metrics"
	"github.com/vfg2006/adstats-sync/internal/usecases/account"
	"github.com/vfg2006/adstats-sync/pkg/middleware"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func Healthcheck(deps map[string]Pinger) []router.Route {
	return []router.Route{
		{
			Path:    "/healthcheck",
			Method:  http.MethodGet,
			Handler: HealthcheckHandler(deps),
		},
		{
			Path:    "/metrics",
			Method:  http.MethodGet,
			Handler: metrics.Handler(),
		},
	}
}

func AdAccounts(service account.AccountService, secret string) []router.Route {
	return []router.Route{
		{
			Path:    "/v1/accounts",
			Method:  http.MethodGet,
			Handler: ListAdAccounts(service),
		},
		{
			Path:        "/v1/accounts/:id",
			Method:      http.MethodPatch,
			Handler:     UpdateAdAccount(service),
			Middlewares: []func(http.Handler) http.Handler{middleware.SchedulerSecret(secret)},
		},
		{
			Path:    "/v1/accounts/:id/daily",
			Method:  http.MethodGet,
			Handler: GetAccountDailyStats(service),
		},
		{
			Path:        "/v1/accounts/status",
			Method:      http.MethodPut,
			Handler:     UpdateAccountsStatus(service),
			Middlewares: []func(http.Handler) http.Handler{middleware.SchedulerSecret(secret)},
		},
	}
}

func StatsStreams(services CronJobServices, secret string) []router.Route {
	return []router.Route{
		{
			Path:        "/v1/stats/sync",
			Method:      http.MethodGet,
			Handler:     StreamDailySync(services.DailyStatsSyncService),
			Middlewares: []func(http.Handler) http.Handler{middleware.SchedulerSecret(secret)},
		},
		{
			Path:        "/v1/stats/reconcile",
			Method:      http.MethodGet,
			Handler:     StreamReconciliation(services.ReconciliationScanService),
			Middlewares: []func(http.Handler) http.Handler{middleware.SchedulerSecret(secret)},
		},
	}
}

func CronJobs(services CronJobServices, secret string) []router.Route {
	return []router.Route{
		{
			Path:        "/v1/cron/:type/run",
			Method:      http.MethodPost,
			Handler:     RunCronJob(services),
			Middlewares: []func(http.Handler) http.Handler{middleware.SchedulerSecret(secret)},
		},
		{
			Path:        "/v1/cron/status",
			Method:      http.MethodGet,
			Handler:     GetCronStatus(services),
			Middlewares: []func(http.Handler) http.Handler{middleware.SchedulerSecret(secret)},
		},
	}
}
