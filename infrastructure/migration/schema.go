package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/infrastructure/database/postgres"
)

type step struct {
	name      string
	statement string
}

var steps = []step{
	{
		name: "ad_accounts",
		statement: `
			CREATE TABLE IF NOT EXISTS ad_accounts (
				id                    VARCHAR(21) PRIMARY KEY,
				platform              VARCHAR(1)  NOT NULL,
				external_id           TEXT        NOT NULL,
				name                  TEXT        NOT NULL DEFAULT '',
				credential_ref        TEXT,
				agent                 TEXT,
				start_date            DATE        NOT NULL,
				end_date              DATE,
				conversion_definition TEXT        NOT NULL DEFAULT '',
				owner_email           TEXT,
				status                VARCHAR(16) NOT NULL DEFAULT 'active',
				budget                NUMERIC(15, 2) NOT NULL DEFAULT 0,
				cpc_goal              NUMERIC(10, 2),
				cpa_goal              NUMERIC(10, 2),
				created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (platform, external_id)
			)`,
	},
	{
		name: "daily_stats",
		statement: `
			CREATE TABLE IF NOT EXISTS daily_stats (
				id          BIGSERIAL PRIMARY KEY,
				account_id  VARCHAR(21)    NOT NULL REFERENCES ad_accounts (id),
				external_id TEXT           NOT NULL,
				date        DATE           NOT NULL,
				spend       NUMERIC(18, 4) NOT NULL DEFAULT 0,
				impressions BIGINT         NOT NULL DEFAULT 0,
				clicks      BIGINT         NOT NULL DEFAULT 0,
				conversions BIGINT         NOT NULL DEFAULT 0,
				created_at  TIMESTAMPTZ    NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMPTZ    NOT NULL DEFAULT NOW(),
				UNIQUE (account_id, date)
			)`,
	},
	{
		name: "ad_accounts_goals",
		statement: `
			ALTER TABLE ad_accounts
				ADD COLUMN IF NOT EXISTS budget   NUMERIC(15, 2) NOT NULL DEFAULT 0,
				ADD COLUMN IF NOT EXISTS cpc_goal NUMERIC(10, 2),
				ADD COLUMN IF NOT EXISTS cpa_goal NUMERIC(10, 2)`,
	},
	{
		name: "d_account_tokens",
		statement: `
			CREATE TABLE IF NOT EXISTS d_account_tokens (
				credential_key TEXT PRIMARY KEY,
				token          TEXT        NOT NULL,
				updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
	},
}

// Apply cria as tabelas que ainda não existem e as colunas adicionadas depois
func Apply(ctx context.Context, conn postgres.Queryer) error {
	startTime := time.Now()

	for _, s := range steps {
		if _, err := conn.ExecContext(ctx, s.statement); err != nil {
			return fmt.Errorf("erro ao aplicar migração %s: %w", s.name, err)
		}
		logrus.WithField("table", s.name).Debug("Migração aplicada")
	}

	logrus.Infof("Migrações concluídas em %v", time.Since(startTime))
	return nil
}
