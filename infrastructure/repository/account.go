package repository

//go:generate mockgen -source=account.go -destination=mocks/account.go -package=mocks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/vfg2006/adstats-sync/infrastructure/database/postgres"
	"github.com/vfg2006/adstats-sync/internal/domain"
)

const (
	accountsTable   = "ad_accounts a"
	accountsColumns = "a.id, a.platform, a.external_id, a.name, a.credential_ref, a.agent, a.start_date, a.end_date, a.conversion_definition, a.owner_email, a.status, a.budget, a.cpc_goal, a.cpa_goal"

	// mesma regra de domain.AdAccount.CredentialKey
	tokenJoin = "d_account_tokens t ON t.credential_key = COALESCE(NULLIF(a.credential_ref, ''), a.external_id)"
)

type AccountRepository interface {
	ListActive(ctx context.Context, platform *domain.Platform, accountID string) ([]*domain.AdAccount, error)
	GetByID(ctx context.Context, accountID string) (*domain.AdAccount, error)
	UpdateStatus(ctx context.Context, req *domain.UpdateAccountStatusRequest) (int64, error)
	ListAccounts(ctx context.Context, filter domain.AdAccountFilter) ([]*domain.AdAccountResponse, error)
	UpdateAccount(ctx context.Context, request *domain.UpdateAdAccountRequest) (int64, error)
}

type accountRepository struct {
	conn *postgres.Connection
}

func NewAccountRepository(conn *postgres.Connection) AccountRepository {
	return &accountRepository{
		conn: conn,
	}
}

// ListActive lista as contas ativas. accountID aceita tanto o id interno quanto o id externo.
func (a *accountRepository) ListActive(ctx context.Context, platform *domain.Platform, accountID string) ([]*domain.AdAccount, error) {
	queryBuilder := squirrel.
		Select(accountsColumns).
		From(accountsTable).
		Where(squirrel.Eq{"a.status": domain.AdAccountStatusActive}).
		OrderBy("a.platform ASC", "a.external_id ASC").
		PlaceholderFormat(squirrel.Dollar)

	if platform != nil {
		queryBuilder = queryBuilder.Where(squirrel.Eq{"a.platform": *platform})
	}

	if accountID != "" {
		queryBuilder = queryBuilder.Where(squirrel.Or{
			squirrel.Eq{"a.id": accountID},
			squirrel.Eq{"a.external_id": accountID},
		})
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}
	defer rows.Close()

	accounts := make([]*domain.AdAccount, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: erro ao escanear conta: %v", domain.ErrRegistryUnavailable, err)
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: erro durante a iteração de linhas: %v", domain.ErrRegistryUnavailable, err)
	}

	return accounts, nil
}

func (a *accountRepository) GetByID(ctx context.Context, accountID string) (*domain.AdAccount, error) {
	query, args, err := squirrel.
		Select(accountsColumns).
		From(accountsTable).
		Where(squirrel.Eq{"a.id": accountID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	acc, err := scanAccount(a.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}

	return acc, nil
}

// UpdateStatus altera o status das contas; contas arquivadas nunca são removidas
func (a *accountRepository) UpdateStatus(ctx context.Context, req *domain.UpdateAccountStatusRequest) (int64, error) {
	query, args, err := squirrel.
		Update("ad_accounts").
		Set("status", req.Status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": req.AccountIDs}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("erro ao construir a query: %w", err)
	}

	result, err := a.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("erro ao obter número de linhas afetadas: %w", err)
	}

	return rowsAffected, nil
}

// ListAccounts lista as contas ativas da mais recente para a mais antiga,
// indicando se a chave de credencial da conta já tem token cadastrado
func (a *accountRepository) ListAccounts(ctx context.Context, filter domain.AdAccountFilter) ([]*domain.AdAccountResponse, error) {
	queryBuilder := squirrel.
		Select(accountsColumns, "t.token IS NOT NULL AS has_token").
		From(accountsTable).
		LeftJoin(tokenJoin).
		Where(squirrel.Eq{"a.status": domain.AdAccountStatusActive}).
		OrderBy("a.created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	if filter.OwnerEmail != "" {
		queryBuilder = queryBuilder.Where(squirrel.Eq{"a.owner_email": filter.OwnerEmail})
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		term := "%" + search + "%"
		queryBuilder = queryBuilder.Where(squirrel.Or{
			squirrel.ILike{"a.name": term},
			squirrel.ILike{"a.external_id": term},
		})
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}
	defer rows.Close()

	accounts := make([]*domain.AdAccountResponse, 0)
	for rows.Next() {
		var hasToken bool
		acc, err := scanAccount(rows, &hasToken)
		if err != nil {
			return nil, fmt.Errorf("erro ao escanear conta: %w", err)
		}
		accounts = append(accounts, &domain.AdAccountResponse{AdAccount: acc, HasToken: hasToken})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return accounts, nil
}

// UpdateAccount grava apenas os campos informados e devolve o número de linhas alteradas
func (a *accountRepository) UpdateAccount(ctx context.Context, request *domain.UpdateAdAccountRequest) (int64, error) {
	if request.ID == "" {
		return 0, errors.New("id da conta obrigatório")
	}

	queryBuilder := squirrel.
		Update("ad_accounts").
		Where(squirrel.Eq{"id": request.ID}).
		PlaceholderFormat(squirrel.Dollar)

	if request.Budget != nil {
		queryBuilder = queryBuilder.Set("budget", *request.Budget)
	}

	if request.StartDate != nil {
		queryBuilder = queryBuilder.Set("start_date", *request.StartDate)
	}

	if request.EndDate != nil {
		queryBuilder = queryBuilder.Set("end_date", nullIfEmpty(*request.EndDate))
	}

	if request.Agent != nil {
		queryBuilder = queryBuilder.Set("agent", nullIfEmpty(*request.Agent))
	}

	if request.CPCGoal != nil {
		queryBuilder = queryBuilder.Set("cpc_goal", *request.CPCGoal)
	}

	if request.CPAGoal != nil {
		queryBuilder = queryBuilder.Set("cpa_goal", *request.CPAGoal)
	}

	query, args, err := queryBuilder.
		Set("updated_at", squirrel.Expr("NOW()")).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("erro ao construir a query: %w", err)
	}

	result, err := a.conn.ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return 0, fmt.Errorf("%w: erro no banco de dados: %v (código: %s)", domain.ErrRegistryUnavailable, pqErr, pqErr.Code)
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("erro ao obter número de linhas afetadas: %w", err)
	}

	return rowsAffected, nil
}

func nullIfEmpty(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAccount lê as colunas de accountsColumns; extra recebe as colunas
// selecionadas depois delas
func scanAccount(row rowScanner, extra ...any) (*domain.AdAccount, error) {
	acc := &domain.AdAccount{}

	var (
		credentialRef sql.NullString
		agent         sql.NullString
		ownerEmail    sql.NullString
		endDate       sql.NullTime
		conversions   string
		cpcGoal       decimal.NullDecimal
		cpaGoal       decimal.NullDecimal
	)

	dest := []any{
		&acc.ID,
		&acc.Platform,
		&acc.ExternalID,
		&acc.Name,
		&credentialRef,
		&agent,
		&acc.StartDate,
		&endDate,
		&conversions,
		&ownerEmail,
		&acc.Status,
		&acc.Budget,
		&cpcGoal,
		&cpaGoal,
	}

	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if cpcGoal.Valid {
		acc.CPCGoal = &cpcGoal.Decimal
	}
	if cpaGoal.Valid {
		acc.CPAGoal = &cpaGoal.Decimal
	}

	acc.CredentialRef = nullableString(credentialRef)
	acc.Agent = nullableString(agent)
	acc.OwnerEmail = nullableString(ownerEmail)
	if endDate.Valid {
		acc.EndDate = &endDate.Time
	}
	acc.ConversionDefinition = splitDefinition(conversions)

	return acc, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	return &s.String
}

// splitDefinition converte "EventA,EventB" em lista, ignorando entradas vazias
func splitDefinition(raw string) []string {
	definition := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			definition = append(definition, part)
		}
	}
	return definition
}
