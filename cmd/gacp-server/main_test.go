// cmd/gacp-server/main_test.go
package main

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"gacp-certification/internal/common/config"
	"gacp-certification/internal/common/logger"
	cpr "gacp-certification/internal/workers/application/check-priority-routing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewTestLogger(t)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), func() error {
			calls++
			if calls < 3 {
				return stderrors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, log, "test op")

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), func() error {
			calls++
			return stderrors.New("connection refused")
		}, 3, time.Millisecond, log, "test op")

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "test op failed after 3 attempts")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retryWithBackoff(ctx, func() error {
			calls++
			cancel()
			return stderrors.New("connection refused")
		}, 5, time.Hour, log, "test op")

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestRoutingRules(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, cpr.DefaultRules, routingRules(cfg))

	cfg.Routing.Rules = []config.RoutingRule{
		{Name: "multi-site", When: "siteTypeCount > 1", Priority: "high", Queue: "multi-site"},
	}
	assert.Equal(t, []cpr.Rule{
		{Name: "multi-site", When: "siteTypeCount > 1", Priority: "high", Queue: "multi-site"},
	}, routingRules(cfg))
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["workers"])
	assert.True(t, names["migrate"])

	flag := serveCmd.Flags().Lookup("workers")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)
}
