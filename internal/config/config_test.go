package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/screenql/compiler/internal/config"
)

func TestDefaultResolvesMetricsAcrossBothTables(t *testing.T) {
	cfg := config.Default()

	m, ok := cfg.ResolveMetric("sector")
	assert.True(t, ok)
	assert.Equal(t, "tickers", m.Table)
	assert.Equal(t, "sector", m.Column)

	m, ok = cfg.ResolveMetric("close")
	assert.True(t, ok)
	assert.Equal(t, "daily_agg", m.Table)
	assert.True(t, m.Timeseries)
}

func TestDefaultResolveMetricUnknownNameFails(t *testing.T) {
	cfg := config.Default()
	_, ok := cfg.ResolveMetric("nonexistent")
	assert.False(t, ok)
}

func TestDefaultTablesShareTickerPrimaryKey(t *testing.T) {
	cfg := config.Default()
	tickers, ok := cfg.Table("tickers")
	assert.True(t, ok)
	dailyAgg, ok := cfg.Table("daily_agg")
	assert.True(t, ok)
	assert.Equal(t, tickers.PrimaryKeys, dailyAgg.PrimaryKeys)
}

func TestLoadFileEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := config.LoadFile("")
	assert.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}
