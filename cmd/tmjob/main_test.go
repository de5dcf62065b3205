package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/programme-lv/tmjob/api"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	a := &app{out: &out}
	envFile := filepath.Join(t.TempDir(), ".env")
	argv := append([]string{"tmjob", "--env-file", envFile}, args...)
	require.NoError(t, a.command().Run(context.Background(), argv))
	return out.String()
}

func TestScriptCommand(t *testing.T) {
	script := runApp(t, "script")
	require.True(t, strings.HasPrefix(script, "#!/bin/bash\n#SBATCH --partition=gpu\n"))
	require.Contains(t, script, "export TURBOMOLE_SYSNAME=x86_64-unknown-linux-gnu_smp\n")
	require.True(t, strings.HasSuffix(script, "define < define-inputs.txt\ndscf > dscf.out\nricc2 > ricc2.out\n"))
}

func TestInitThenScript(t *testing.T) {
	jobPath := filepath.Join(t.TempDir(), "job.toml")
	runApp(t, "init", "-o", jobPath)
	require.FileExists(t, jobPath)

	require.Equal(t, runApp(t, "script"), runApp(t, "script", "-j", jobPath))

	var out bytes.Buffer
	a := &app{out: &out}
	err := a.command().Run(context.Background(), []string{"tmjob", "--env-file", filepath.Join(t.TempDir(), ".env"), "init", "-o", jobPath})
	require.ErrorContains(t, err, "already exists")
}

const fakeProgram = `#!/bin/bash
name=$(basename "$0")
echo "$name : all done PARNODES=$PARNODES"
`

func TestRunCommand(t *testing.T) {
	bin := t.TempDir()
	for _, p := range []string{"define", "dscf", "ricc2"} {
		require.NoError(t, os.WriteFile(filepath.Join(bin, p), []byte(fakeProgram), 0o755))
	}
	t.Setenv("PATH", bin+":"+os.Getenv("PATH"))

	dir := t.TempDir()
	jobPath := filepath.Join(dir, "job.toml")
	require.NoError(t, os.WriteFile(jobPath, []byte(`
name = "water"

[toolchain]
module = ""

[[inputs]]
name = "define-inputs.txt"
content = "a coord\n*\nno\n"
`), 0o644))

	runApp(t, "run", "-j", jobPath, "-d", dir, "--archive")

	b, err := os.ReadFile(filepath.Join(dir, "ricc2.out"))
	require.NoError(t, err)
	require.Equal(t, "ricc2 : all done PARNODES=8\n", string(b))
	require.FileExists(t, filepath.Join(dir, "define-inputs.txt"))
	require.FileExists(t, filepath.Join(dir, "dscf.out.zst"))
}

func TestSubmitCommandStagesInputs(t *testing.T) {
	sbatch := filepath.Join(t.TempDir(), "sbatch")
	require.NoError(t, os.WriteFile(sbatch, []byte("#!/bin/bash\n[ -f define-inputs.txt ] || exit 1\necho \"$1 $2\" > sbatch.args\necho 4242\n"), 0o755))
	t.Setenv("TMJOB_SBATCH", sbatch)

	dir := t.TempDir()
	jobPath := filepath.Join(t.TempDir(), "job.toml")
	require.NoError(t, os.WriteFile(jobPath, []byte(`
[[inputs]]
name = "define-inputs.txt"
content = "a coord\n*\nno\n"
`), 0o644))

	out := runApp(t, "submit", "-j", jobPath, "-d", dir)
	require.Equal(t, "4242\n", out)

	b, err := os.ReadFile(filepath.Join(dir, "define-inputs.txt"))
	require.NoError(t, err)
	require.Equal(t, "a coord\n*\nno\n", string(b))
	require.FileExists(t, filepath.Join(dir, "run.sh"))

	args, err := os.ReadFile(filepath.Join(dir, "sbatch.args"))
	require.NoError(t, err)
	require.Equal(t, "--parsable "+filepath.Join(dir, "run.sh")+"\n", string(args))
}

func TestCheckHealth(t *testing.T) {
	bin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, "dscf"), []byte(fakeProgram), 0o755))
	env := []string{"PATH=" + bin + ":/usr/bin:/bin"}

	job := api.JobReq{
		Steps: []api.Step{
			{Name: "dscf", Command: "dscf"},
			{Name: "dscf-again", Command: "dscf"},
			{Name: "ricc2", Command: "ricc2"},
		},
	}
	feedback := checkHealth(context.Background(), job, filepath.Join(bin, "no-sbatch"), env)

	units := make([]string, 0, len(feedback))
	for _, row := range feedback {
		units = append(units, row.unit)
	}
	require.Equal(t, []string{"sbatch", "bash", "dscf", "ricc2"}, units)
	require.Equal(t, healthWarn, feedback[0].health)
	require.Equal(t, healthOk, feedback[2].health)
	require.Equal(t, filepath.Join(bin, "dscf"), feedback[2].message)
	require.Equal(t, healthError, feedback[3].health)

	var out bytes.Buffer
	outputFeedback(&out, feedback)
	require.Contains(t, out.String(), "ricc2")
	require.Contains(t, out.String(), "WARN")
	require.Contains(t, out.String(), "ERROR")
	require.Equal(t, "OKAY", healthOk.String())
}
