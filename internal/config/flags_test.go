package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modquant-lab/internal/domain"
)

func parseFlags(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := BindBacktestFlags(fs)
	require.NoError(t, fs.Parse(args))

	cfg := Default()
	cfg.Backtest.Segmentation = "strict"
	return cfg, f.Apply(cfg)
}

func TestBacktestFlags_UnsetKeepConfig(t *testing.T) {
	cfg, err := parseFlags(t)
	require.NoError(t, err)
	assert.Equal(t, "strict", cfg.Backtest.Segmentation)
	assert.Equal(t, 2, cfg.Backtest.LossThreshold)
}

func TestBacktestFlags_Overrides(t *testing.T) {
	cfg, err := parseFlags(t, "-segmentation", "oscillation", "-reversal-run", "4", "-threshold", "3", "-delimiter", "comma")
	require.NoError(t, err)

	bc, err := cfg.BacktestConfig()
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentationOscillation, bc.Segmentation)
	assert.Equal(t, 4, bc.ReversalRun)
	assert.Equal(t, 3, bc.Follow.LossThreshold)
	assert.Equal(t, ',', bc.Delimiter)
}

func TestBacktestFlags_TargetImpliesWinRate(t *testing.T) {
	cfg, err := parseFlags(t, "-target", "62.5")
	require.NoError(t, err)
	assert.Equal(t, "win_rate", cfg.Backtest.StopPolicy)
	require.NotNil(t, cfg.Backtest.TargetWinRate)
	assert.Equal(t, 62.5, *cfg.Backtest.TargetWinRate)
}

func TestBacktestFlags_Invalid(t *testing.T) {
	_, err := parseFlags(t, "-target", "abc")
	assert.Error(t, err)

	_, err = parseFlags(t, "-stop-policy", "win_rate")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = parseFlags(t, "-target", "120")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
