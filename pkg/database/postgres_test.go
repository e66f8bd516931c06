package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/hris-discipline-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:             "db",
		Port:             5432,
		User:             "hris",
		Password:         `it's secret`,
		Name:             "hris_discipline",
		SSLMode:          "disable",
		StatementTimeout: 15 * time.Second,
		ApplicationName:  "hris-discipline-api",
	})

	assert.Contains(t, dsn, "host='db' port='5432'")
	assert.Contains(t, dsn, `password='it\'s secret'`)
	assert.Contains(t, dsn, "application_name='hris-discipline-api'")
	assert.Contains(t, dsn, "options='-c statement_timeout=15000'")
}

func TestDSNOmitsOptionalParts(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, SSLMode: "require"})
	assert.NotContains(t, dsn, "application_name")
	assert.NotContains(t, dsn, "options")
}
