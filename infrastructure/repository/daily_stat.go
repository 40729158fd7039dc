package repository

//go:generate mockgen -source=daily_stat.go -destination=mocks/daily_stat.go -package=mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/vfg2006/adstats-sync/infrastructure/database/postgres"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

const (
	dailyStatsTable   = "daily_stats ds"
	dailyStatsColumns = "ds.id, ds.account_id, ds.external_id, ds.date, ds.spend, ds.impressions, ds.clicks, ds.conversions, ds.updated_at"
)

type DailyStatRepository interface {
	Upsert(ctx context.Context, stat *domain.DailyStat) error
	ExistingDates(ctx context.Context, accountID string, dates []time.Time) ([]time.Time, error)
	GetByDateRange(ctx context.Context, accountID string, startDate, endDate time.Time) ([]*domain.DailyStat, error)
	TotalsByAccount(ctx context.Context, accountIDs []string) (map[string]domain.Metrics, error)
	SpendOn(ctx context.Context, accountIDs []string, date time.Time) (map[string]decimal.Decimal, error)
}

type dailyStatRepository struct {
	conn *postgres.Connection
}

func NewDailyStatRepository(conn *postgres.Connection) DailyStatRepository {
	return &dailyStatRepository{
		conn: conn,
	}
}

// Upsert cria ou substitui a linha (conta, data); a última escrita prevalece
func (r *dailyStatRepository) Upsert(ctx context.Context, stat *domain.DailyStat) error {
	query, args, err := squirrel.StatementBuilder.
		Insert("daily_stats").
		Columns("account_id", "external_id", "date", "spend", "impressions", "clicks", "conversions").
		Values(
			stat.AccountID,
			stat.ExternalID,
			stat.Date.Format(time.DateOnly),
			stat.Spend,
			stat.Impressions,
			stat.Clicks,
			stat.Conversions,
		).
		Suffix(`
			ON CONFLICT (account_id, date) DO UPDATE SET
				external_id = EXCLUDED.external_id,
				spend = EXCLUDED.spend,
				impressions = EXCLUDED.impressions,
				clicks = EXCLUDED.clicks,
				conversions = EXCLUDED.conversions,
				updated_at = NOW()
		`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("erro ao construir a query: %w", err)
	}

	if _, err := r.conn.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("%w: erro no banco de dados: %v (código: %s)", domain.ErrStoreUnavailable, pqErr, pqErr.Code)
		}
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return nil
}

// ExistingDates devolve as datas de dates que já têm linha para a conta
func (r *dailyStatRepository) ExistingDates(ctx context.Context, accountID string, dates []time.Time) ([]time.Time, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format(time.DateOnly))
	}

	query, args, err := squirrel.
		Select("ds.date").
		From(dailyStatsTable).
		Where(squirrel.Eq{"ds.account_id": accountID}).
		Where("ds.date = ANY(?::date[])", pq.Array(formatted)).
		OrderBy("ds.date ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	existing := make([]time.Time, 0, len(dates))
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("%w: erro ao escanear data: %v", domain.ErrStoreUnavailable, err)
		}
		existing = append(existing, utils.CivilDate(date))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: erro durante a iteração de linhas: %v", domain.ErrStoreUnavailable, err)
	}

	return existing, nil
}

// GetByDateRange lista as linhas da conta no intervalo, da mais recente para a mais antiga
func (r *dailyStatRepository) GetByDateRange(ctx context.Context, accountID string, startDate, endDate time.Time) ([]*domain.DailyStat, error) {
	query, args, err := squirrel.
		Select(dailyStatsColumns).
		From(dailyStatsTable).
		Where(squirrel.Eq{"ds.account_id": accountID}).
		Where(squirrel.GtOrEq{"ds.date": startDate.Format(time.DateOnly)}).
		Where(squirrel.LtOrEq{"ds.date": endDate.Format(time.DateOnly)}).
		OrderBy("ds.date DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	stats := make([]*domain.DailyStat, 0)
	for rows.Next() {
		stat := &domain.DailyStat{}
		if err := rows.Scan(
			&stat.ID,
			&stat.AccountID,
			&stat.ExternalID,
			&stat.Date,
			&stat.Spend,
			&stat.Impressions,
			&stat.Clicks,
			&stat.Conversions,
			&stat.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("erro ao escanear estatística diária: %w", err)
		}
		stat.Date = utils.CivilDate(stat.Date)
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return stats, nil
}

// TotalsByAccount soma as métricas de cada conta apenas dentro do próprio
// período de veiculação. Contas sem linhas ficam fora do mapa.
func (r *dailyStatRepository) TotalsByAccount(ctx context.Context, accountIDs []string) (map[string]domain.Metrics, error) {
	totals := make(map[string]domain.Metrics, len(accountIDs))
	if len(accountIDs) == 0 {
		return totals, nil
	}

	query, args, err := squirrel.
		Select(
			"ds.account_id",
			"COALESCE(SUM(ds.spend), 0)",
			"COALESCE(SUM(ds.impressions), 0)",
			"COALESCE(SUM(ds.clicks), 0)",
			"COALESCE(SUM(ds.conversions), 0)",
		).
		From(dailyStatsTable).
		Join("ad_accounts a ON a.id = ds.account_id").
		Where(squirrel.Eq{"ds.account_id": accountIDs}).
		Where("ds.date >= a.start_date").
		Where("(a.end_date IS NULL OR ds.date <= a.end_date)").
		GroupBy("ds.account_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			accountID string
			m         domain.Metrics
		)
		if err := rows.Scan(&accountID, &m.Spend, &m.Impressions, &m.Clicks, &m.Conversions); err != nil {
			return nil, fmt.Errorf("erro ao escanear totais da conta: %w", err)
		}
		totals[accountID] = m
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return totals, nil
}

// SpendOn devolve o gasto gravado de cada conta na data
func (r *dailyStatRepository) SpendOn(ctx context.Context, accountIDs []string, date time.Time) (map[string]decimal.Decimal, error) {
	spend := make(map[string]decimal.Decimal, len(accountIDs))
	if len(accountIDs) == 0 {
		return spend, nil
	}

	query, args, err := squirrel.
		Select("ds.account_id", "ds.spend").
		From(dailyStatsTable).
		Where(squirrel.Eq{"ds.account_id": accountIDs}).
		Where(squirrel.Eq{"ds.date": date.Format(time.DateOnly)}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			accountID string
			value     decimal.Decimal
		)
		if err := rows.Scan(&accountID, &value); err != nil {
			return nil, fmt.Errorf("erro ao escanear gasto diário: %w", err)
		}
		spend[accountID] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return spend, nil
}
