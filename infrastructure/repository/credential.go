package repository

//go:generate mockgen -source=credential.go -destination=mocks/credential.go -package=mocks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/vfg2006/adstats-sync/infrastructure/database/postgres"
	"github.com/vfg2006/adstats-sync/internal/domain"
)

type CredentialRepository interface {
	TokenFor(ctx context.Context, account *domain.AdAccount) (string, error)
	UpsertToken(ctx context.Context, credentialKey, token string) error
}

type credentialRepository struct {
	conn *postgres.Connection
}

func NewCredentialRepository(conn *postgres.Connection) CredentialRepository {
	return &credentialRepository{
		conn: conn,
	}
}

// TokenFor busca o token de longa duração pela chave de credencial da conta.
// Contas sem token retornam domain.ErrCredentialMissing.
func (r *credentialRepository) TokenFor(ctx context.Context, account *domain.AdAccount) (string, error) {
	query, args, err := squirrel.
		Select("t.token").
		From("d_account_tokens t").
		Where(squirrel.Eq{"t.credential_key": account.CredentialKey()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("erro ao construir a query: %w", err)
	}

	var token string
	if err := r.conn.QueryRowContext(ctx, query, args...).Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: conta %s", domain.ErrCredentialMissing, account.ExternalID)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}

	if token == "" {
		return "", fmt.Errorf("%w: conta %s", domain.ErrCredentialMissing, account.ExternalID)
	}

	return token, nil
}

// UpsertToken cadastra ou substitui o token de uma chave de credencial
func (r *credentialRepository) UpsertToken(ctx context.Context, credentialKey, token string) error {
	query, args, err := squirrel.
		Insert("d_account_tokens").
		Columns("credential_key", "token").
		Values(credentialKey, token).
		Suffix("ON CONFLICT (credential_key) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("erro ao construir a query: %w", err)
	}

	if _, err := r.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}

	return nil
}
