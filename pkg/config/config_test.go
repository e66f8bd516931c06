package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Discipline.RequireExplanationBeforeVerdict)
	assert.Equal(t, []string{"HR_MANAGER", "SUPERADMIN"}, cfg.Discipline.VerdictRoles)
	assert.Equal(t, 5, cfg.Discipline.PriorViolationLimit)
	assert.Equal(t, 15*time.Second, cfg.Notifications.RelayInterval)
	assert.Empty(t, cfg.Notifications.KafkaBrokers)
	assert.Equal(t, 15*time.Second, cfg.Database.StatementTimeout)
	assert.Equal(t, "hris-discipline-api", cfg.Database.ApplicationName)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 10, cfg.Notifications.MaxDeliveryAttempts)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DISCIPLINE_REQUIRE_EXPLANATION", "false")
	t.Setenv("DISCIPLINE_VERDICT_ROLES", "HR_MANAGER, HR ,")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("NOTIFICATIONS_RETRY_DELAY", "not-a-duration")
	t.Setenv("NOTIFICATIONS_MAX_DELIVERY_ATTEMPTS", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Discipline.RequireExplanationBeforeVerdict)
	assert.Equal(t, []string{"HR_MANAGER", "HR"}, cfg.Discipline.VerdictRoles)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Notifications.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.Notifications.RetryDelay)
	assert.Equal(t, 4, cfg.Notifications.MaxDeliveryAttempts)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
