package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/fatih/color"
	pretty_table "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/programme-lv/tmjob/api"
	"github.com/programme-lv/tmjob/internal/toolchain"
	"github.com/urfave/cli/v3"
)

type health int

const (
	healthOk health = iota
	healthWarn
	healthError
)

var healthLabels = map[health]struct {
	label string
	color *color.Color
}{
	healthOk:    {"OKAY", color.New(color.FgGreen)},
	healthWarn:  {"WARN", color.New(color.FgYellow)},
	healthError: {"ERROR", color.New(color.FgRed, color.Bold)},
}

func (h health) String() string { return healthLabels[h].label }

const lookupTimeout = 30 * time.Second

type feedbackRow struct {
	unit    string
	health  health
	message string
}

func (a *app) healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check that sbatch, the module system and the job programs are usable",
		Flags: []cli.Flag{jobFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			job, err := loadJob(cmd.String("job"))
			if err != nil {
				return err
			}
			feedback := checkHealth(ctx, job, a.cfg.SbatchPath, os.Environ())
			outputFeedback(a.out, feedback)
			for _, row := range feedback {
				if row.health == healthError {
					return errors.New("health check failed")
				}
			}
			return nil
		},
	}
}

func checkHealth(ctx context.Context, job api.JobReq, sbatchPath string, env []string) []feedbackRow {
	feedback := []feedbackRow{lookPathRow("sbatch", sbatchPath, healthWarn)}

	bash := lookPathRow("bash", "bash", healthError)
	feedback = append(feedback, bash)
	if bash.health == healthError {
		return feedback
	}

	tc := job.Toolchain
	if tc.Module != "" && tc.ModuleInit != "" {
		row := feedbackRow{unit: "module init", health: healthOk, message: tc.ModuleInit}
		if _, err := os.Stat(tc.ModuleInit); err != nil {
			row.health = healthWarn
			row.message = err.Error()
		}
		feedback = append(feedback, row)
	}

	seen := mapset.NewSet[string]()
	for _, step := range job.Steps {
		program, _, _ := strings.Cut(step.Command, " ")
		if !seen.Add(program) {
			continue
		}
		feedback = append(feedback, lookupProgram(ctx, tc, program, env))
	}
	return feedback
}

func lookPathRow(unit string, path string, failHealth health) feedbackRow {
	found, err := exec.LookPath(path)
	if err != nil {
		return feedbackRow{unit: unit, health: failHealth, message: err.Error()}
	}
	return feedbackRow{unit: unit, health: healthOk, message: found}
}

// lookupProgram resolves a program the way a step would, with the module
// loaded and the toolchain environment exported.
func lookupProgram(ctx context.Context, tc api.Toolchain, program string, env []string) feedbackRow {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	script := "command -v " + toolchain.Quote(program)
	if prelude := toolchain.Prelude(tc); prelude != "" {
		script = prelude + " || exit 127\n" + script
	}
	cmd := exec.CommandContext(ctx, "bash", "-c", script)
	cmd.Env = toolchain.Merge(env, tc)
	out, err := cmd.CombinedOutput()
	msg := strings.TrimSpace(string(out))
	if err != nil {
		if msg == "" {
			msg = "not found"
		}
		return feedbackRow{unit: program, health: healthError, message: msg}
	}
	return feedbackRow{unit: program, health: healthOk, message: msg}
}

func outputFeedback(w io.Writer, feedback []feedbackRow) {
	t := pretty_table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(pretty_table.StyleLight)
	t.AppendHeader(pretty_table.Row{"Unit", "Health", "Message"})
	for _, row := range feedback {
		label := healthLabels[row.health].color.Sprint(row.health)
		t.AppendRow(pretty_table.Row{row.unit, label, row.message})
	}
	t.SetColumnConfigs([]pretty_table.ColumnConfig{
		{Name: "Health", Align: text.AlignCenter},
	})
	t.Render()
}
