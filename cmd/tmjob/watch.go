package main

import (
	"context"
	"fmt"
	"regexp"

	"github.com/fatih/color"
	"github.com/programme-lv/tmjob/internal/logwatch"
	"github.com/urfave/cli/v3"
)

func (a *app) watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "wait for job logs to finish, classify them and move failed jobs aside",
		ArgsUsage: "DIR...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log", Value: logwatch.DefaultLogName, Usage: "log file inside each job directory"},
			&cli.DurationFlag{Name: "interval", Value: logwatch.DefaultInterval, Usage: "polling interval"},
			&cli.DurationFlag{Name: "timeout", Value: logwatch.DefaultTimeout, Usage: "give up on a job after this long"},
			&cli.IntFlag{Name: "concurrency", Value: logwatch.DefaultConcurrency, Usage: "jobs watched at once"},
			&cli.BoolFlag{Name: "relocate", Usage: "move incomplete and errored jobs"},
			&cli.StringFlag{Name: "root", Value: ".", Usage: "where the failed and companion directories are created"},
			&cli.StringFlag{Name: "prefix", Usage: "only relocate directories containing this, e.g. gradient_"},
			&cli.StringSliceFlag{Name: "success", Usage: "success markers that must all appear in the log tail"},
			&cli.StringFlag{Name: "error", Usage: "regular expression matching an error line"},
			&cli.BoolFlag{Name: "wrapper", Usage: "use the batch wrapper markers instead of the Turbomole ones"},
			&cli.StringFlag{Name: "failed-dir", Value: logwatch.DefaultFailedDir},
			&cli.StringFlag{Name: "companion-dir", Value: logwatch.DefaultCompanionDir},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dirs := cmd.Args().Slice()
			if len(dirs) == 0 {
				return fmt.Errorf("no job directories given")
			}

			w := logwatch.NewWatcher(a.logger)
			w.LogName = cmd.String("log")
			w.Interval = cmd.Duration("interval")
			w.Timeout = cmd.Duration("timeout")
			w.Concurrency = int(cmd.Int("concurrency"))
			if cmd.Bool("wrapper") {
				w.Markers = logwatch.WrapperMarkers()
			}
			if success := cmd.StringSlice("success"); len(success) > 0 {
				w.Markers.Success = success
			}
			if pattern := cmd.String("error"); pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid error pattern: %w", err)
				}
				w.Markers.Error = re
			}

			report, err := w.WatchAll(ctx, dirs)
			if err != nil {
				return err
			}
			a.printReport(report)

			if !cmd.Bool("relocate") {
				return nil
			}
			r := logwatch.NewRelocator(cmd.String("root"), a.logger)
			r.Prefix = cmd.String("prefix")
			r.FailedDir = cmd.String("failed-dir")
			r.CompanionDir = cmd.String("companion-dir")
			moves, err := r.Relocate(report)
			if err != nil {
				return err
			}
			for _, m := range moves {
				fmt.Fprintf(a.out, "moved %s -> %s\n", m.From, m.To)
			}
			return nil
		},
	}
}

func (a *app) printReport(report logwatch.Report) {
	colors := map[logwatch.Status]*color.Color{
		logwatch.Succeeded:  color.New(color.FgGreen),
		logwatch.Errored:    color.New(color.FgRed, color.Bold),
		logwatch.Incomplete: color.New(color.FgYellow),
		logwatch.TimedOut:   color.New(color.FgYellow),
		logwatch.Missing:    color.New(color.Faint),
	}
	for _, res := range report.Results {
		colors[res.Status].Fprintf(a.out, "%-10s %s\n", res.Status, res.Dir)
		if res.Err != nil {
			fmt.Fprintf(a.out, "           %v\n", res.Err)
		}
	}
	fmt.Fprintf(a.out, "%d succeeded, %d errored, %d incomplete, %d timed out, %d missing\n",
		report.Count(logwatch.Succeeded), report.Count(logwatch.Errored), report.Count(logwatch.Incomplete),
		report.Count(logwatch.TimedOut), report.Count(logwatch.Missing))
}
