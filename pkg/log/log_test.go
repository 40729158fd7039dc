package log

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForContextCarriesIDs(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	hook := test.NewGlobal()
	defer hook.Reset()

	ctx, correlationID := WithCorrelationID(context.Background())
	ctx = WithRunID(ctx, "daily_sync-20240311-abc123")

	ForContext(ctx).Info("teste")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, correlationID, entry.Data[correlationIDField])
	assert.Equal(t, "daily_sync-20240311-abc123", entry.Data[runIDField])
	assert.Equal(t, correlationID, GetCorrelationID(ctx))
}

func TestDevelopmentFiltersFields(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	hook := test.NewGlobal()
	defer hook.Reset()

	L.WithFields(Fields{"account_id": "acc1", "user_agent": "curl"}).Warn("filtrado")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "acc1", entry.Data["account_id"])
	assert.NotContains(t, entry.Data, "user_agent")
}

func TestForRun(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	hook := test.NewGlobal()
	defer hook.Reset()

	ForRun("reconciliation", "r1").Info("evento")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "reconciliation", entry.Data["run"])
	assert.Equal(t, "r1", entry.Data[runIDField])
}
