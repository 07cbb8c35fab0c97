// Package config holds the static, process-wide description of tables
// and metrics the compiler resolves UserQuery expressions against. A
// Config is immutable once constructed (spec §5, §9 "Global state") and
// safe to share across concurrent compile calls.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ColumnType is the ClickHouse-facing type of a column a metric maps to.
type ColumnType string

const (
	TypeFloat64     ColumnType = "Float64"
	TypeString      ColumnType = "String"
	TypeUInt8       ColumnType = "UInt8"
	TypeDate        ColumnType = "Date"
	TypeDateTime    ColumnType = "DateTime"
	TypeArrayString ColumnType = "Array(String)"
)

// JoinStrategy is an optional per-metric join setting. The join inferrer
// does not read it: every join it emits is the pairwise primary-key
// INNER join (spec §4.3), whatever this field holds.
type JoinStrategy string

// Table describes one source table: its primary keys, its time column
// (if it has one), and the columns that must always be projected when
// the table is touched.
type Table struct {
	Name                 string   `yaml:"name"`
	TimeColumn           string   `yaml:"time_column,omitempty"`
	PrimaryKeys          []string `yaml:"primary_keys"`
	AlwaysIncludeColumns []string `yaml:"always_include_columns,omitempty"`
	OtherColumns         []string `yaml:"other_columns,omitempty"`
}

// ColumnMapping resolves a metric name to its backing table/column.
type ColumnMapping struct {
	Table        string       `yaml:"table"`
	Column       string       `yaml:"column"`
	Type         ColumnType   `yaml:"type"`
	Timeseries   bool         `yaml:"timeseries,omitempty"`
	JoinStrategy JoinStrategy `yaml:"join_strategy,omitempty"`
}

// Config is the static schema the compiler resolves metrics and
// grouping dimensions against.
type Config struct {
	Tables           map[string]Table         `yaml:"tables"`
	ColumnMappings   map[string]ColumnMapping `yaml:"column_mappings"`
	TimeFormat       string                   `yaml:"time_format"`
	MaxTimeseriesWindow int64                 `yaml:"max_timeseries_window"`
	MaxLimit         int                      `yaml:"max_limit"`
}

// ResolveMetric looks up a metric name's backing table/column.
func (c *Config) ResolveMetric(name string) (ColumnMapping, bool) {
	m, ok := c.ColumnMappings[name]
	return m, ok
}

// ResolveDimension resolves a group-by dimension name the same way a
// metric is resolved: dimensions in this schema are plain metrics.
func (c *Config) ResolveDimension(name string) (ColumnMapping, bool) {
	return c.ResolveMetric(name)
}

// Table looks up a table by name.
func (c *Config) Table(name string) (Table, bool) {
	t, ok := c.Tables[name]
	return t, ok
}

// Default returns the built-in market-data configuration described in
// spec §6: two tables, `tickers` and `daily_agg`, sharing primary key
// `ticker`.
func Default() *Config {
	return &Config{
		Tables: map[string]Table{
			"tickers": {
				Name:        "tickers",
				PrimaryKeys: []string{"ticker"},
				OtherColumns: []string{
					"sector", "country", "active", "name", "exchange",
				},
			},
			"daily_agg": {
				Name:                 "daily_agg",
				TimeColumn:           "date",
				PrimaryKeys:          []string{"ticker"},
				AlwaysIncludeColumns: []string{"ticker", "date"},
				OtherColumns: []string{
					"open", "high", "low", "close", "volume",
				},
			},
		},
		ColumnMappings: map[string]ColumnMapping{
			"ticker":  {Table: "tickers", Column: "ticker", Type: TypeString},
			"sector":  {Table: "tickers", Column: "sector", Type: TypeString},
			"country": {Table: "tickers", Column: "country", Type: TypeString},
			"active":  {Table: "tickers", Column: "active", Type: TypeUInt8},
			"name":    {Table: "tickers", Column: "name", Type: TypeString},
			"exchange": {Table: "tickers", Column: "exchange", Type: TypeString},

			"open":   {Table: "daily_agg", Column: "open", Type: TypeFloat64, Timeseries: true},
			"high":   {Table: "daily_agg", Column: "high", Type: TypeFloat64, Timeseries: true},
			"low":    {Table: "daily_agg", Column: "low", Type: TypeFloat64, Timeseries: true},
			"close":  {Table: "daily_agg", Column: "close", Type: TypeFloat64, Timeseries: true},
			"volume": {Table: "daily_agg", Column: "volume", Type: TypeFloat64, Timeseries: true},
			"date":   {Table: "daily_agg", Column: "date", Type: TypeDate, Timeseries: true},
		},
		TimeFormat:          "2006-01-02",
		MaxTimeseriesWindow: 5 * 365 * 86400,
		MaxLimit:            10000,
	}
}

// LoadFile reads a YAML config file in the shape written by Default,
// for operators that want to edit table/metric definitions without a
// rebuild. An empty path returns Default().
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
