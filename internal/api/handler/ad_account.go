package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/usecases/account"
	"github.com/vfg2006/adstats-sync/pkg/apiErrors"
)

func writeAccountError(w http.ResponseWriter, err error, fallback string) {
	// Verificar se é um AccountError para obter detalhes específicos do erro
	var accountErr *account.AccountError
	if errors.As(err, &accountErr) {
		apiErrors.WriteError(w, accountErr.Code, accountErr.Error(), nil)
		return
	}
	apiErrors.WriteError(w, apiErrors.ErrInternalServer, fallback, nil)
}

// ListAdAccounts lista as contas ativas com gasto, ritmo e orçamento diário
func ListAdAccounts(service account.AccountService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		filter := domain.AdAccountFilter{
			OwnerEmail: strings.TrimSpace(query.Get("owner")),
			Search:     strings.TrimSpace(query.Get("q")),
		}

		accounts, err := service.ListAdAccounts(r.Context(), filter)
		if err != nil {
			logrus.WithError(err).Error("Erro ao listar contas")
			writeAccountError(w, err, "Erro ao listar contas")
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(map[string]any{"accounts": accounts}); err != nil {
			apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Erro ao codificar resposta", nil)
		}
	})
}

// UpdateAdAccount altera os dados da conta e o token da plataforma D
func UpdateAdAccount(service account.AccountService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request domain.UpdateAdAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, "Corpo da requisição inválido: "+err.Error(), nil)
			return
		}
		request.ID = httprouter.ParamsFromContext(r.Context()).ByName("id")

		resp, err := service.UpdateAccount(r.Context(), &request)
		if err != nil {
			writeAccountError(w, err, "Erro ao atualizar conta")
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Erro ao codificar resposta", nil)
		}
	})
}

// GetAccountDailyStats retorna as linhas diárias da conta com CPC e CPA
func GetAccountDailyStats(service account.AccountService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := httprouter.ParamsFromContext(r.Context()).ByName("id")

		resp, err := service.GetDailyStats(r.Context(), id)
		if err != nil {
			logrus.WithError(err).WithField("account_id", id).Error("Erro ao buscar estatísticas diárias")
			writeAccountError(w, err, "Erro ao buscar estatísticas diárias")
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Erro ao codificar resposta", nil)
		}
	})
}

// UpdateAccountsStatus ativa ou arquiva contas em lote
func UpdateAccountsStatus(service account.AccountService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("INIT - UpdateAccountsStatus")

		var request domain.UpdateAccountStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, "Corpo da requisição inválido: "+err.Error(), nil)
			return
		}

		resp, err := service.UpdateStatus(r.Context(), &request)
		if err != nil {
			writeAccountError(w, err, "Erro ao atualizar status das contas")
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Erro ao codificar resposta", nil)
		}
	})
}
