package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/scheduler"
	"github.com/vfg2006/adstats-sync/pkg/apiErrors"
	"github.com/vfg2006/adstats-sync/pkg/log"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

const eventStreamBuffer = 32

// DailySyncRunner executa a sincronização diária
type DailySyncRunner interface {
	Run(ctx context.Context, opts scheduler.SyncOptions, sink scheduler.EmitFunc) (*domain.RunSummary, error)
	TriggerManualSync(opts scheduler.SyncOptions) error
	GetStatus() map[string]any
}

// ReconciliationRunner executa a varredura de reconciliação
type ReconciliationRunner interface {
	Run(ctx context.Context, opts scheduler.ScanOptions, sink scheduler.EmitFunc) (*domain.RunSummary, error)
	TriggerManualScan(opts scheduler.ScanOptions) error
	GetStatus() map[string]any
}

type runFunc func(ctx context.Context, sink scheduler.EmitFunc) error

func parseSyncOptions(r *http.Request) (scheduler.SyncOptions, error) {
	query := r.URL.Query()
	opts := scheduler.SyncOptions{AccountID: query.Get("account_id")}

	if raw := query.Get("date"); raw != "" {
		date, err := utils.ParseDate(raw)
		if err != nil {
			return opts, fmt.Errorf("data inválida %q, use YYYY-MM-DD", raw)
		}
		opts.Date = date
	}

	return opts, nil
}

// StreamDailySync executa a sincronização diária e transmite o progresso via SSE
func StreamDailySync(runner DailySyncRunner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts, err := parseSyncOptions(r)
		if err != nil {
			apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, err.Error(), nil)
			return
		}

		streamRun(w, r, func(ctx context.Context, sink scheduler.EmitFunc) error {
			_, err := runner.Run(ctx, opts, sink)
			return err
		})
	})
}

// StreamReconciliation executa a reconciliação e transmite o progresso via SSE
func StreamReconciliation(runner ReconciliationRunner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := scheduler.ScanOptions{AccountID: r.URL.Query().Get("account_id")}

		streamRun(w, r, func(ctx context.Context, sink scheduler.EmitFunc) error {
			_, err := runner.Run(ctx, opts, sink)
			return err
		})
	})
}

// streamRun inicia a execução e escreve cada evento como "data: {json}\n\n".
// A execução não depende da conexão: se o cliente desconectar, os eventos
// seguintes são descartados e a execução termina normalmente.
func streamRun(w http.ResponseWriter, r *http.Request, run runFunc) {
	logger := log.ForContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Streaming não suportado", nil)
		return
	}

	stream := scheduler.NewEventStream(eventStreamBuffer)
	runErr := make(chan error, 1)

	go func() {
		defer stream.Close()
		runErr <- run(context.WithoutCancel(r.Context()), stream.Emit)
	}()

	// O primeiro evento decide se a resposta é um stream ou um erro
	first, ok := <-stream.Events()
	if !ok {
		err := <-runErr
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			apiErrors.WriteError(w, apiErrors.ErrRunInProgress, "Execução já em andamento", nil)
		case err != nil:
			logger.WithError(err).Error("Execução terminou antes de emitir eventos")
			apiErrors.WriteError(w, apiErrors.ErrInternalServer, err.Error(), nil)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, first); err != nil {
		stream.Detach()
		return
	}
	flusher.Flush()

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				logger.WithError(err).Warn("Falha ao escrever evento, encerrando stream")
				stream.Detach()
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			logger.Info("Cliente desconectado do stream, execução continua")
			stream.Detach()
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev domain.ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
