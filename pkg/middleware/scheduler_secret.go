package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/pkg/apiErrors"
)

// SchedulerSecretHeader é o cabeçalho enviado pelo agendador externo
const SchedulerSecretHeader = "X-Scheduler-Secret"

// SchedulerSecret restringe a rota a quem conhece o segredo do agendador.
// Sem segredo configurado a rota fica fechada.
func SchedulerSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				logrus.Warn("Segredo do agendador não configurado, recusando acesso")
				apiErrors.WriteError(w, apiErrors.ErrInsufficientPrivilege, "Acesso do agendador não configurado", nil)
				return
			}

			provided := r.Header.Get(SchedulerSecretHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				logrus.WithField("path", r.URL.Path).Warning("Tentativa de acesso com segredo do agendador inválido")
				apiErrors.WriteError(w, apiErrors.ErrInvalidToken, "Segredo do agendador inválido", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
