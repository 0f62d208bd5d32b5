package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-pivot/pkg/config"
	"github.com/goliatone/go-pivot/pkg/logging"
)

var (
	colorOK   = color.New(color.FgGreen, color.Bold).SprintFunc()
	colorErr  = color.New(color.FgRed, color.Bold).SprintFunc()
	colorInfo = color.New(color.FgBlue).SprintFunc()
)

type cli struct {
	EnvFile   []string `name:"env-file" type:"path" help:"Dotenv files loaded before reading PIVOT_* variables."`
	LogLevel  string   `name:"log-level" help:"Overrides PIVOT_LOG_LEVEL."`
	LogFormat string   `name:"log-format" help:"Overrides PIVOT_LOG_FORMAT (json or console)."`

	Render  renderCmd  `cmd:"" help:"Print a pivot table built from a config file and a row file."`
	Export  exportCmd  `cmd:"" help:"Write a pivot table to an Excel workbook."`
	Explore exploreCmd `cmd:"" help:"Open an interactive session to collapse, sort and export a pivot table."`
	Serve   serveCmd   `cmd:"" help:"Serve pivot widgets over HTTP with live events."`
}

// runtime is bound into every command's Run.
type runtime struct {
	Env    config.Env
	Logger zerolog.Logger
}

func (c *cli) runtime() (*runtime, error) {
	env, err := config.Load(c.EnvFile...)
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		env.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		env.LogFormat = c.LogFormat
	}
	logger := logging.New(logging.Options{Level: env.LogLevel, Format: env.LogFormat})
	return &runtime{Env: env, Logger: logger}, nil
}

func main() {
	var root cli
	ctx := kong.Parse(&root,
		kong.Name("pivotctl"),
		kong.Description("Build, explore and export pivot tables."),
		kong.UsageOnError(),
	)
	rt, err := root.runtime()
	ctx.FatalIfErrorf(err)

	base := logging.WithLogger(context.Background(), rt.Logger)
	ctx.BindTo(base, (*context.Context)(nil))
	ctx.Bind(rt)
	if err := ctx.Run(); err != nil {
		os.Stderr.WriteString(colorErr("✗ ") + err.Error() + "\n")
		os.Exit(1)
	}
}
