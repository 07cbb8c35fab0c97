// Command screenctl is a flag-based CLI that compiles a single UserQuery
// and prints its SQL, parameters, and flow diagram. It is the one
// entrypoint exercising the whole core outside of tests, mirroring the
// teacher's cmd/datalog batch-query mode.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/screenql/compiler/internal/cache"
	"github.com/screenql/compiler/internal/compiler"
	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/model"
	"github.com/screenql/compiler/internal/params"
)

func main() {
	var (
		queryPath  = flag.String("query", "", "path to a UserQuery JSON file (default: stdin)")
		configPath = flag.String("config", "", "path to a YAML config file (default: built-in market-data config)")
		verbose    = flag.Bool("verbose", false, "print per-pass optimizer trace to stderr")
		risky      = flag.Bool("risky", false, "enable the optimizer's risky passes")
		table      = flag.Bool("table", false, "print the parameter table as a preview table to stderr")
		cacheDir   = flag.String("cache-dir", "", "on-disk cache directory (default: no cache)")
	)
	flag.Parse()

	if err := run(*queryPath, *configPath, *verbose, *risky, *table, *cacheDir); err != nil {
		fmt.Fprintln(os.Stderr, "screenctl:", err)
		os.Exit(1)
	}
}

func run(queryPath, configPath string, verbose, risky, showTable bool, cacheDir string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	q, err := loadQuery(queryPath)
	if err != nil {
		return fmt.Errorf("load query: %w", err)
	}

	var opts []compiler.Option
	opts = append(opts, compiler.WithVerbose(verbose), compiler.WithRiskyOptimizations(risky))
	if cacheDir != "" {
		c, err := cache.New(10000, cacheDir)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer c.Close()
		opts = append(opts, compiler.WithCache(c))
	}

	comp := compiler.New(cfg, opts...)
	result, err := comp.Compile(q)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	if verbose && result.Trace != "" {
		fmt.Fprintln(os.Stderr, result.Trace)
	}
	if showTable {
		printParameterTable(os.Stderr, result.Parameters)
	}

	out := struct {
		SQL        string      `json:"sql"`
		Parameters interface{} `json:"parameters"`
		Diagram    string      `json:"diagram"`
	}{
		SQL:        result.SQL,
		Parameters: result.Parameters,
		Diagram:    result.Diagram,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

func loadQuery(path string) (*model.UserQuery, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var q model.UserQuery
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func printParameterTable(w io.Writer, pt *params.Table) {
	table := tablewriter.NewTable(w)
	table.Header([]string{"name", "type", "value"})
	for _, p := range pt.Ordered() {
		table.Append([]string{p.Name, p.Type, fmt.Sprintf("%v", p.Value)})
	}
	table.Render()
}
