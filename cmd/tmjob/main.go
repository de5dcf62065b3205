package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/programme-lv/tmjob/internal/environment"
	"github.com/urfave/cli/v3"
)

type app struct {
	out    io.Writer
	cfg    *environment.EnvConfig
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	if err := a.command().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:   "tmjob",
		Usage:  "render, submit and run Turbomole batch jobs",
		Writer: a.out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file with process settings",
				Value: ".env",
			},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			a.initCommand(),
			a.scriptCommand(),
			a.submitCommand(),
			a.runCommand(),
			a.watchCommand(),
			a.workerCommand(),
			a.healthCommand(),
		},
	}
}

func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := environment.ReadEnvConfig(cmd.String("env-file"))
	if err != nil {
		return ctx, err
	}
	a.cfg = cfg
	a.logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(a.logger)
	return ctx, nil
}
