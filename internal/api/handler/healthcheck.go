package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Pinger é uma dependência verificada pelo healthcheck
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthcheckHandler responde com a hora atual, ou 503 quando alguma
// dependência não responde
func HealthcheckHandler(deps map[string]Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				logrus.WithError(err).WithField("dependency", name).Warn("Dependência indisponível no healthcheck")
				http.Error(w, name+" indisponível", http.StatusServiceUnavailable)
				return
			}
		}

		_, err := w.Write([]byte(time.Now().String()))
		if err != nil {
			logrus.WithError(err).Warn("error responding to healthcheck")
		}
	})
}
