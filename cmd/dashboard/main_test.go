package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"passos-predictor/internal/common/camunda"
	"passos-predictor/internal/common/config"
	"passos-predictor/internal/common/logger"
)

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("connection refused")
		}
		return nil
	}, 5, 0, zap.NewNop(), "flaky dependency")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryWithBackoff(func() error {
		calls++
		return fmt.Errorf("connection refused")
	}, 2, 0, zap.NewNop(), "dead dependency")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "dead dependency failed after 2 attempts")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStartPredictionWorker_BrokerUnreachable(t *testing.T) {
	cfg := config.CamundaConfig{
		Enabled:         true,
		BrokerAddress:   "127.0.0.1:1",
		MaxJobsActive:   5,
		Timeout:         30000,
		ConnectAttempts: 3,
		RetryDelay:      1,
	}
	attempts := 0
	connect := func(address string) (*camunda.Client, error) {
		attempts++
		assert.Equal(t, cfg.BrokerAddress, address)
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: connection refused", address)
	}
	checks := make(map[string]func(context.Context) error)

	stop := startPredictionWorker(cfg, connect, nil, checks, zap.NewNop(), logger.NewTestLogger(t))

	assert.Nil(t, stop)
	assert.Equal(t, 3, attempts)
	assert.NotContains(t, checks, "zeebe")
}
