package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/programme-lv/tmjob/api"
	"github.com/programme-lv/tmjob/internal/filestore"
	"github.com/programme-lv/tmjob/internal/gatherer/termgath"
	"github.com/programme-lv/tmjob/internal/jobfile"
	"github.com/programme-lv/tmjob/internal/runner"
	"github.com/programme-lv/tmjob/internal/slurm"
	"github.com/programme-lv/tmjob/internal/worker"
	"github.com/programme-lv/tmjob/internal/xdg"
	"github.com/urfave/cli/v3"
)

var jobFlag = &cli.StringFlag{
	Name:    "job",
	Aliases: []string{"j"},
	Usage:   "TOML job file, the built-in define/dscf/ricc2 job when empty",
}

func loadJob(path string) (api.JobReq, error) {
	if path == "" {
		return jobfile.Default(), nil
	}
	return jobfile.Parse(path)
}

func (a *app) initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write the default job file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "job.toml"},
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			out := cmd.String("output")
			if _, err := os.Stat(out); err == nil && !cmd.Bool("force") {
				return fmt.Errorf("%s already exists, use --force to overwrite", out)
			}
			data, err := jobfile.Encode(jobfile.Default())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write job file: %w", err)
			}
			a.logger.Info("wrote job file", "path", out)
			return nil
		},
	}
}

func (a *app) scriptCommand() *cli.Command {
	return &cli.Command{
		Name:  "script",
		Usage: "render the batch script",
		Flags: []cli.Flag{
			jobFlag,
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to a file instead of stdout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			job, err := loadJob(cmd.String("job"))
			if err != nil {
				return err
			}
			script, err := slurm.Script(job)
			if err != nil {
				return err
			}
			if out := cmd.String("output"); out != "" {
				return writeScript(out, script)
			}
			_, err = fmt.Fprint(a.out, script)
			return err
		},
	}
}

func writeScript(path string, script string) error {
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	return nil
}

func (a *app) submitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "render the batch script and submit it with sbatch",
		Flags: []cli.Flag{
			jobFlag,
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "run.sh", Usage: "script path"},
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: ".", Usage: "job directory"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			job, err := loadJob(cmd.String("job"))
			if err != nil {
				return err
			}
			script, err := slurm.Script(job)
			if err != nil {
				return err
			}
			dir := cmd.String("dir")
			path := cmd.String("output")
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			if err := a.stageInputs(ctx, dir, job.Inputs); err != nil {
				return err
			}
			if err := writeScript(path, script); err != nil {
				return err
			}

			id, err := slurm.NewSubmitter(a.cfg.SbatchPath, a.logger).Submit(ctx, path, dir)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, id)
			return err
		},
	}
}

func (a *app) runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the job steps in the current allocation",
		Flags: []cli.Flag{
			jobFlag,
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: ".", Usage: "job directory"},
			&cli.BoolFlag{Name: "archive", Usage: "compress step logs with zstd afterwards"},
			&cli.BoolFlag{Name: "stop-on-failure", Usage: "skip the remaining steps after a failed one"},
			&cli.BoolFlag{Name: "strict", Usage: "exit non-zero when a step failed"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			job, err := loadJob(cmd.String("job"))
			if err != nil {
				return err
			}
			job.ArchiveLogs = job.ArchiveLogs || cmd.Bool("archive")
			job.StopOnFailure = job.StopOnFailure || cmd.Bool("stop-on-failure")
			dir := cmd.String("dir")

			if err := a.stageInputs(ctx, dir, job.Inputs); err != nil {
				return err
			}

			res, err := runner.New(dir, a.logger).Run(ctx, job, termgath.New())
			if err != nil {
				return err
			}
			if cmd.Bool("strict") && res.Failed() {
				return cli.Exit("one or more steps failed", 2)
			}
			return nil
		},
	}
}

func (a *app) stageInputs(ctx context.Context, dir string, inputs []api.InputFile) error {
	remote := false
	for _, in := range inputs {
		remote = remote || in.Url != nil
	}
	if !remote {
		return worker.StageInputs(ctx, dir, inputs, nil)
	}

	store, err := a.newFileStore(ctx)
	if err != nil {
		return err
	}
	return worker.StageInputs(ctx, dir, inputs, store)
}

// newFileStore starts a file store that downloads until ctx is done.
func (a *app) newFileStore(ctx context.Context) (*filestore.FileStore, error) {
	dirs := xdg.New()
	store, err := filestore.New(dirs.FilesDir(), dirs.TmpDir(), a.logger)
	if err != nil {
		return nil, err
	}
	go store.Start(ctx)
	return store, nil
}
