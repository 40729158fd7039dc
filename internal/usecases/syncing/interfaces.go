package syncing

//go:generate mockgen -source=interfaces.go -destination=mocks/interfaces.go -package=mocks

import (
	"context"
	"time"

	"github.com/vfg2006/adstats-sync/internal/domain"
)

// AccountRegistry fornece as contas ativas que participam da sincronização
type AccountRegistry interface {
	// ListActive lista contas ativas, opcionalmente filtradas por plataforma e por id
	ListActive(ctx context.Context, platform *domain.Platform, accountID string) ([]*domain.AdAccount, error)
}

// CredentialStore resolve o token de longa duração de uma conta
type CredentialStore interface {
	// TokenFor retorna domain.ErrCredentialMissing quando a conta não tem token
	TokenFor(ctx context.Context, account *domain.AdAccount) (string, error)
}

// StatsStore é a fonte de verdade sobre o que já foi sincronizado
type StatsStore interface {
	// Upsert cria ou substitui a linha (conta, data)
	Upsert(ctx context.Context, stat *domain.DailyStat) error
	// ExistingDates retorna o subconjunto de dates que já possui linha para a conta
	ExistingDates(ctx context.Context, accountID string, dates []time.Time) ([]time.Time, error)
}

// PlatformAdapter busca métricas diárias em uma plataforma de anúncios.
// Falhas de contas individuais voltam em FetchResult.Failed; o erro só é
// retornado quando o lote inteiro é inutilizável.
type PlatformAdapter interface {
	Platform() domain.Platform
	FetchDailyStats(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error)
}
