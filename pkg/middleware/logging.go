package middleware

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/vfg2006/adstats-sync/pkg/log"
)

// CorrelationIDHeader devolve ao cliente o id usado nos logs da requisição
const CorrelationIDHeader = "X-Correlation-ID"

// quietPaths são sondadas com frequência pelo orquestrador e pelo Prometheus
var quietPaths = map[string]bool{
	"/healthcheck": true,
	"/metrics":     true,
}

// slowRequest é o limite a partir do qual a requisição é marcada como lenta
const slowRequest = 500 * time.Millisecond

// isStream indica as rotas de SSE, que ficam abertas durante toda a execução
func isStream(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/stats/")
}

// LoggingMiddleware registra informações sobre cada requisição HTTP
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Gera um ID de correlação para esta requisição
			ctx, correlationID := log.WithCorrelationID(r.Context())
			r = r.WithContext(ctx)
			w.Header().Set(CorrelationIDHeader, correlationID)

			lrw := newLoggingResponseWriter(w)
			startTime := time.Now()

			if quietPaths[r.URL.Path] {
				next.ServeHTTP(lrw, r)
				log.L.WithFields(log.Fields{
					"path":        r.URL.Path,
					"status_code": lrw.statusCode,
				}).Debug("Sondagem atendida")
				return
			}

			requestFields := log.Fields{
				"correlation_id": correlationID,
				"method":         r.Method,
				"path":           r.URL.Path,
			}
			if !log.IsDevelopment() {
				requestFields["remote_addr"] = r.RemoteAddr
				requestFields["query"] = r.URL.RawQuery
				requestFields["user_agent"] = r.UserAgent()
			}

			stream := isStream(r)
			if stream {
				log.L.WithFields(requestFields).Info("Stream de progresso aberto")
			} else {
				log.L.WithFields(requestFields).Debug("Requisição iniciada")
			}

			next.ServeHTTP(lrw, r)

			responseTime := time.Since(startTime)
			logger := log.L.WithFields(requestFields).WithFields(log.Fields{
				"status_code": lrw.statusCode,
				"duration_ms": responseTime.Milliseconds(),
			})

			msg := fmt.Sprintf("Requisição finalizada em %s", formatDuration(responseTime))
			if stream {
				msg = fmt.Sprintf("Stream de progresso encerrado após %s", formatDuration(responseTime))
			}

			switch {
			case lrw.statusCode >= 500:
				logger.Error(msg)
			case lrw.statusCode >= 400:
				logger.Warn(msg)
			default:
				logger.Info(msg)
			}

			// streams duram a execução inteira e não contam como lentos
			if !stream && responseTime > slowRequest {
				logger.Warnf("Requisição lenta: %s %s", r.Method, r.URL.Path)
			}
		})
	}
}

// formatDuration formata a duração de forma humana
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d µs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2f s", d.Seconds())
	}
}

// loggingResponseWriter é um wrapper para http.ResponseWriter para capturar o status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// newLoggingResponseWriter cria um novo loggingResponseWriter
func newLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{w, http.StatusOK}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Flush repassa o flush para o writer original; necessário para o streaming de eventos
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LogPanicMiddleware registra panics dos handlers com a pilha e devolve 500
func LogPanicMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}

				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]

				logger := log.ForContext(r.Context()).WithFields(log.Fields{
					"error":  err,
					"method": r.Method,
					"path":   r.URL.Path,
				})
				logger.Error("Erro não tratado na aplicação")

				if log.IsDevelopment() {
					fmt.Fprintf(os.Stderr, "\n=== STACK TRACE ===\n%s\n", stack)
				} else {
					logger.WithField("stack_trace", string(stack)).Error("Stack trace do erro")
				}

				http.Error(w, "Erro interno no servidor", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
