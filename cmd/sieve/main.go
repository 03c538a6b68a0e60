package main

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/clarktrimble/sabot"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"sieve"
	"sieve/engine"
	nt "sieve/entity"
	"sieve/store/duck"
	"sieve/store/remote"
	"sieve/tui"
	"sieve/util"
)

const (
	cfgFile = "sieve.yaml"
	logFile = "sieve.log"
)

var sample = []byte(`layout: testdata/layout.yaml
rows: testdata/rows.ndjson
columns:
  - field: id
    width: 4
  - field: region
  - field: amount
    width: 8
  - field: status
  - field: customer.tier
engine:
  concurrency: 4
  max_depth: 32
# definitions come from the layout unless a store is named
# duck:
#   path: filters.duckdb
# remote:
#   base_url: http://localhost:8080/api
#   token: sekret
`)

type Config struct {
	Layout  string         `yaml:"layout"`
	Rows    string         `yaml:"rows"`
	Columns []nt.Column    `yaml:"columns"`
	Engine  *engine.Config `yaml:"engine"`
	Duck    *duck.Config   `yaml:"duck"`
	Remote  *remote.Config `yaml:"remote"`
}

func main() {

	err := util.SampleConfig(sample, cfgFile, 0644)
	check(err)

	cfg := &Config{Engine: &engine.Config{}}
	err = util.LoadConfig(cfg, cfgFile)
	check(err)

	file := util.OpenLog(logFile, 0644)
	defer util.CloseLog(file)

	lgr := &sabot.Sabot{Writer: file, MaxLen: 999}
	ctx := lgr.WithFields(context.Background(), "run_id", uuid.NewString()[:8])
	lgr.Info(ctx, "sieve starting", "layout", cfg.Layout, "rows", cfg.Rows)

	layout, err := sieve.LoadLayout(cfg.Layout)
	check(err)

	rows, err := util.LoadRows(cfg.Rows)
	check(err)

	var fetcher engine.Fetcher = layout
	switch {
	case cfg.Duck != nil:
		dk, err := cfg.Duck.New(ctx, lgr)
		check(err)
		defer dk.Close()
		fetcher = dk
	case cfg.Remote != nil:
		client, err := cfg.Remote.New(lgr)
		check(err)
		fetcher = client
	}

	eng := cfg.Engine.New(fetcher, lgr)
	err = layout.Register(ctx, eng)
	check(err)

	model := tui.New(ctx, eng, layout.Filters, rows, cfg.Columns, lgr)
	defer model.Close()

	_, err = tea.NewProgram(model).Run()
	if err != nil {
		lgr.Error(ctx, "program failed", err)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	lgr.Info(ctx, "sieve stopping")
}

func check(err error) {

	if err != nil {
		fmt.Printf("Error: %+v\n", errors.WithStack(err))
		os.Exit(1)
	}
}
