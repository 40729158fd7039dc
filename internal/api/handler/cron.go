package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/scheduler"
	"github.com/vfg2006/adstats-sync/pkg/apiErrors"
)

// CronJobType define o tipo de cron job que será executada
const (
	CronJobTypeDailySync      = "daily-sync"
	CronJobTypeReconciliation = "reconciliation"
)

// CronJobServices contém os serviços de cron necessários para executar manualmente
type CronJobServices struct {
	DailyStatsSyncService     DailySyncRunner
	ReconciliationScanService ReconciliationRunner
}

// CronRunResponse é a resposta de uma execução síncrona
type CronRunResponse struct {
	Type     string             `json:"type"`
	Summary  *domain.RunSummary `json:"summary,omitempty"`
	Messages []string           `json:"messages"`
	Error    string             `json:"error,omitempty"`
}

// messageCollector guarda as mensagens dos eventos para a resposta
type messageCollector struct {
	mu       sync.Mutex
	messages []string
}

func (c *messageCollector) emit(ev domain.ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, ev.Message)
}

// RunCronJob executa manualmente uma cron job específica. Por padrão a
// execução é síncrona e a resposta traz as mensagens de progresso; com
// async=true a execução é apenas disparada.
func RunCronJob(services CronJobServices) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("INIT - RunCronJob")

		cronType := httprouter.ParamsFromContext(r.Context()).ByName("type")
		if cronType == "" {
			apiErrors.WriteError(w, apiErrors.ErrMissingRequiredData, "Tipo de cron job não especificado", nil)
			return
		}

		async, _ := strconv.ParseBool(r.URL.Query().Get("async"))

		var (
			run     func(ctx context.Context, sink scheduler.EmitFunc) (*domain.RunSummary, error)
			trigger func() error
		)

		switch cronType {
		case CronJobTypeDailySync:
			if services.DailyStatsSyncService == nil {
				apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Serviço de sincronização diária não disponível", nil)
				return
			}
			opts, err := parseSyncOptions(r)
			if err != nil {
				apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, err.Error(), nil)
				return
			}
			run = func(ctx context.Context, sink scheduler.EmitFunc) (*domain.RunSummary, error) {
				return services.DailyStatsSyncService.Run(ctx, opts, sink)
			}
			trigger = func() error { return services.DailyStatsSyncService.TriggerManualSync(opts) }

		case CronJobTypeReconciliation:
			if services.ReconciliationScanService == nil {
				apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Serviço de reconciliação não disponível", nil)
				return
			}
			opts := scheduler.ScanOptions{AccountID: r.URL.Query().Get("account_id")}
			run = func(ctx context.Context, sink scheduler.EmitFunc) (*domain.RunSummary, error) {
				return services.ReconciliationScanService.Run(ctx, opts, sink)
			}
			trigger = func() error { return services.ReconciliationScanService.TriggerManualScan(opts) }

		default:
			apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, "Tipo de cron job inválido. Valores aceitos: daily-sync, reconciliation", nil)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if async {
			if err := trigger(); err != nil {
				writeRunError(w, err)
				return
			}
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{
				"message": "Cron job iniciada com sucesso",
				"type":    cronType,
			})
			return
		}

		collector := &messageCollector{messages: make([]string, 0)}
		summary, err := run(context.WithoutCancel(r.Context()), collector.emit)
		if errors.Is(err, domain.ErrRunInProgress) {
			writeRunError(w, err)
			return
		}

		response := CronRunResponse{
			Type:     cronType,
			Summary:  summary,
			Messages: collector.messages,
		}

		status := http.StatusOK
		if err != nil {
			logrus.WithError(err).WithField("type", cronType).Error("Cron job terminou com erro")
			response.Error = apiErrors.FromError(err, apiErrors.ErrInternalServer).Message
			status = http.StatusInternalServerError
		}

		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logrus.WithError(err).Error("Erro ao codificar resposta")
		}
	})
}

func writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrRunInProgress) {
		apiErrors.WriteError(w, apiErrors.ErrRunInProgress, "Execução já em andamento", nil)
		return
	}
	apiErrors.WriteError(w, apiErrors.ErrInternalServer, err.Error(), nil)
}

// GetCronStatus retorna o status das cron jobs
func GetCronStatus(services CronJobServices) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("INIT - GetCronStatus")

		status := map[string]any{}
		if services.DailyStatsSyncService != nil {
			status[CronJobTypeDailySync] = services.DailyStatsSyncService.GetStatus()
		}
		if services.ReconciliationScanService != nil {
			status[CronJobTypeReconciliation] = services.ReconciliationScanService.GetStatus()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Erro ao codificar resposta", nil)
		}
	})
}
