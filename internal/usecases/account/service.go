package account

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/infrastructure/repository"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/pkg/apiErrors"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

type AccountService interface {
	ListAdAccounts(ctx context.Context, filter domain.AdAccountFilter) ([]*domain.AdAccountResponse, error)
	UpdateAccount(ctx context.Context, request *domain.UpdateAdAccountRequest) (*domain.UpdateAdAccountResponse, error)
	GetDailyStats(ctx context.Context, accountID string) (*domain.AccountDailyStatsResponse, error)
	UpdateStatus(ctx context.Context, request *domain.UpdateAccountStatusRequest) (*domain.UpdateAccountStatusResponse, error)
}

type Service struct {
	accountRepository    repository.AccountRepository
	dailyStatRepository  repository.DailyStatRepository
	credentialRepository repository.CredentialRepository
	location             *time.Location
	now                  func() time.Time
}

func NewService(
	accountRepository repository.AccountRepository,
	dailyStatRepository repository.DailyStatRepository,
	credentialRepository repository.CredentialRepository,
	cfg *config.Config,
) AccountService {
	loc := cfg.App.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		accountRepository:    accountRepository,
		dailyStatRepository:  dailyStatRepository,
		credentialRepository: credentialRepository,
		location:             loc,
		now:                  time.Now,
	}
}

// ListAdAccounts lista as contas ativas com o acompanhamento do gasto:
// totais do período, gasto de ontem, dias restantes, orçamento diário e ritmo
func (s *Service) ListAdAccounts(ctx context.Context, filter domain.AdAccountFilter) ([]*domain.AdAccountResponse, error) {
	accounts, err := s.accountRepository.ListAccounts(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Erro ao listar contas")
		return nil, NewAccountError(ErrFetchAccounts, apiErrors.ErrDatabaseOperation, "Falha ao listar contas no banco de dados")
	}

	if len(accounts) == 0 {
		return accounts, nil
	}

	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		ids = append(ids, acc.ID)
	}

	yesterday := utils.Yesterday(s.now(), s.location)
	today := yesterday.AddDate(0, 0, 1)

	totals, err := s.dailyStatRepository.TotalsByAccount(ctx, ids)
	if err != nil {
		logrus.WithError(err).Error("Erro ao somar estatísticas das contas")
		return nil, NewAccountError(ErrFetchStats, apiErrors.ErrDatabaseOperation, "Falha ao somar estatísticas das contas")
	}

	yesterdaySpend, err := s.dailyStatRepository.SpendOn(ctx, ids, yesterday)
	if err != nil {
		logrus.WithError(err).Error("Erro ao buscar gasto de ontem")
		return nil, NewAccountError(ErrFetchStats, apiErrors.ErrDatabaseOperation, "Falha ao buscar gasto de ontem")
	}

	for _, acc := range accounts {
		acc.ApplyProgress(totals[acc.ID], yesterdaySpend[acc.ID], today, yesterday)
	}

	return accounts, nil
}

// UpdateAccount altera orçamento, período, agente e metas da conta e cadastra
// o token da plataforma D na chave de credencial dela
func (s *Service) UpdateAccount(ctx context.Context, request *domain.UpdateAdAccountRequest) (*domain.UpdateAdAccountResponse, error) {
	if request == nil || request.ID == "" {
		return nil, NewAccountError(ErrAccountIDRequired, apiErrors.ErrMissingRequiredData, "ID da conta é obrigatório")
	}

	token := request.TokenValue()
	if !request.HasAccountChanges() && token == "" {
		return nil, NewAccountErrorWithID(ErrNothingToUpdate, apiErrors.ErrInvalidRequest, request.ID, "")
	}

	acc, err := s.accountRepository.GetByID(ctx, request.ID)
	if err != nil {
		logrus.WithError(err).WithField("account_id", request.ID).Error("Erro ao buscar conta")
		return nil, NewAccountErrorWithID(ErrDatabaseOperation, apiErrors.ErrDatabaseOperation, request.ID, "Falha ao buscar conta no banco de dados")
	}
	if acc == nil {
		return nil, NewAccountErrorWithID(ErrAccountNotFound, apiErrors.ErrAccountNotFound, request.ID, "")
	}

	if err := validateUpdate(acc, request); err != nil {
		return nil, err
	}

	if token != "" && acc.Platform != domain.PlatformD {
		return nil, NewAccountErrorWithID(ErrTokenNotAllowed, apiErrors.ErrInvalidRequest, request.ID, "")
	}

	if request.HasAccountChanges() {
		updated, err := s.accountRepository.UpdateAccount(ctx, request)
		if err != nil {
			logrus.WithError(err).WithField("account_id", request.ID).Error("Erro ao atualizar conta")
			return nil, NewAccountErrorWithID(ErrUpdateAccount, apiErrors.ErrDatabaseOperation, request.ID, "Falha ao atualizar conta")
		}
		if updated == 0 {
			return nil, NewAccountErrorWithID(ErrAccountNotFound, apiErrors.ErrAccountNotFound, request.ID, "")
		}
	}

	if token != "" {
		if err := s.credentialRepository.UpsertToken(ctx, acc.CredentialKey(), token); err != nil {
			logrus.WithError(err).WithField("account_id", request.ID).Error("Erro ao gravar token da conta")
			return nil, NewAccountErrorWithID(ErrSaveToken, apiErrors.ErrDatabaseOperation, request.ID, "Falha ao gravar token")
		}
	}

	updated, err := s.accountRepository.GetByID(ctx, request.ID)
	if err != nil || updated == nil {
		logrus.WithError(err).WithField("account_id", request.ID).Error("Erro ao recarregar conta")
		return nil, NewAccountErrorWithID(ErrDatabaseOperation, apiErrors.ErrDatabaseOperation, request.ID, "Falha ao recarregar conta")
	}

	logrus.WithFields(logrus.Fields{
		"account_id":    request.ID,
		"token_updated": token != "",
	}).Info("Conta atualizada")

	return &domain.UpdateAdAccountResponse{
		Account:      updated,
		TokenUpdated: token != "",
	}, nil
}

// validateUpdate confere datas e valores contra o estado atual da conta
func validateUpdate(acc *domain.AdAccount, request *domain.UpdateAdAccountRequest) error {
	start := utils.CivilDate(acc.StartDate)
	if request.StartDate != nil {
		parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(*request.StartDate))
		if err != nil {
			return NewAccountErrorWithID(ErrInvalidDate, apiErrors.ErrInvalidFormat, acc.ID, "start_date deve estar no formato YYYY-MM-DD")
		}
		start = parsed
	}

	end := acc.EndDate
	if request.EndDate != nil {
		end = nil
		if raw := strings.TrimSpace(*request.EndDate); raw != "" {
			parsed, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				return NewAccountErrorWithID(ErrInvalidDate, apiErrors.ErrInvalidFormat, acc.ID, "end_date deve estar no formato YYYY-MM-DD")
			}
			end = &parsed
		}
	}

	if end != nil && utils.CivilDate(*end).Before(start) {
		return NewAccountErrorWithID(ErrInvalidDate, apiErrors.ErrInvalidRequest, acc.ID, "end_date anterior a start_date")
	}

	for field, value := range map[string]*decimal.Decimal{
		"budget":   request.Budget,
		"cpc_goal": request.CPCGoal,
		"cpa_goal": request.CPAGoal,
	} {
		if value != nil && value.IsNegative() {
			return NewAccountErrorWithID(ErrInvalidValue, apiErrors.ErrInvalidRequest, acc.ID, field+" não pode ser negativo")
		}
	}

	return nil
}

// GetDailyStats retorna as linhas da conta entre o início da veiculação e o
// fim dela ou ontem, o que vier primeiro
func (s *Service) GetDailyStats(ctx context.Context, accountID string) (*domain.AccountDailyStatsResponse, error) {
	if accountID == "" {
		return nil, NewAccountError(ErrAccountIDRequired, apiErrors.ErrMissingRequiredData, "ID da conta é obrigatório")
	}

	acc, err := s.accountRepository.GetByID(ctx, accountID)
	if err != nil {
		logrus.WithError(err).WithField("account_id", accountID).Error("Erro ao buscar conta")
		return nil, NewAccountErrorWithID(ErrDatabaseOperation, apiErrors.ErrDatabaseOperation, accountID, "Falha ao buscar conta no banco de dados")
	}
	if acc == nil {
		return nil, NewAccountErrorWithID(ErrAccountNotFound, apiErrors.ErrAccountNotFound, accountID, "")
	}

	start := utils.CivilDate(acc.StartDate)
	end := utils.Yesterday(s.now(), s.location)
	if acc.EndDate != nil && utils.CivilDate(*acc.EndDate).Before(end) {
		end = utils.CivilDate(*acc.EndDate)
	}

	response := &domain.AccountDailyStatsResponse{
		AccountID:  acc.ID,
		ExternalID: acc.ExternalID,
		Platform:   acc.Platform,
		StartDate:  start.Format(time.DateOnly),
		EndDate:    end.Format(time.DateOnly),
		Stats:      make([]*domain.DailyStatResponse, 0),
	}

	if end.Before(start) {
		return response, nil
	}

	stats, err := s.dailyStatRepository.GetByDateRange(ctx, acc.ID, start, end)
	if err != nil {
		logrus.WithError(err).WithField("account_id", accountID).Error("Erro ao buscar estatísticas diárias")
		return nil, NewAccountErrorWithID(ErrFetchStats, apiErrors.ErrDatabaseOperation, accountID, "Falha ao buscar estatísticas diárias")
	}

	for _, stat := range stats {
		response.Stats = append(response.Stats, domain.NewDailyStatResponse(stat))
	}

	return response, nil
}

// UpdateStatus ativa ou arquiva contas em lote; contas arquivadas saem da
// sincronização e da reconciliação mas seus dados são mantidos
func (s *Service) UpdateStatus(ctx context.Context, request *domain.UpdateAccountStatusRequest) (*domain.UpdateAccountStatusResponse, error) {
	if request == nil || len(request.AccountIDs) == 0 {
		return nil, NewAccountError(ErrAccountIDRequired, apiErrors.ErrMissingRequiredData, "Informe ao menos uma conta")
	}
	if !request.Status.Valid() {
		return nil, NewAccountError(ErrInvalidStatus, apiErrors.ErrInvalidRequest, "Status deve ser active ou archived")
	}

	updated, err := s.accountRepository.UpdateStatus(ctx, request)
	if err != nil {
		logrus.WithError(err).Error("Erro ao atualizar status das contas")
		return nil, NewAccountError(ErrUpdateAccount, apiErrors.ErrDatabaseOperation, "Falha ao atualizar status das contas")
	}

	logrus.WithFields(logrus.Fields{
		"status":  request.Status,
		"updated": updated,
	}).Info("Status das contas atualizado")

	return &domain.UpdateAccountStatusResponse{
		Updated: updated,
		Status:  request.Status,
	}, nil
}
