package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/pkg/config"
)

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 4, DialTimeout: time.Second})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	assert.Zero(t, Options(config.RedisConfig{Host: "cache", Port: 6379}).PoolSize)
}

func TestNewOptionalDisabled(t *testing.T) {
	assert.Nil(t, NewOptional(context.Background(), false, config.RedisConfig{}, zap.NewNop()))
}
