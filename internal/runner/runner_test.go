package runner_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/programme-lv/tmjob/api"
	"github.com/programme-lv/tmjob/internal/gatherer"
	"github.com/programme-lv/tmjob/internal/gatherer/mocks"
	"github.com/programme-lv/tmjob/internal/runner"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const fakeDefine = `#!/bin/bash
echo define >> order.log
cat > define.seen
echo "PARNODES=$PARNODES PARA_ARCH=$PARA_ARCH TURBOMOLE_SYSNAME=$TURBOMOLE_SYSNAME" >> env.log
echo "define ended normally"
`

const fakeCompute = `#!/bin/bash
name=$(basename "$0")
echo "$name" >> order.log
echo "PARNODES=$PARNODES PARA_ARCH=$PARA_ARCH TURBOMOLE_SYSNAME=$TURBOMOLE_SYSNAME" >> env.log
echo "$name : all done"
`

func strPtr(s string) *string { return &s }

// setup writes fake Turbomole programs and returns the job directory and a
// runner whose PATH finds them first.
func setup(t *testing.T, withInput bool) (string, *runner.Runner) {
	t.Helper()
	bin := t.TempDir()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, "define"), []byte(fakeDefine), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "dscf"), []byte(fakeCompute), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "ricc2"), []byte(fakeCompute), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "fail"), []byte("#!/bin/bash\necho fail >> order.log\necho 'fail ended abnormally' >&2\nexit 3\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "slow"), []byte("#!/bin/bash\necho slow >> order.log\nexec sleep 30\n"), 0755))
	if withInput {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "define-inputs.txt"), []byte("\n\na coord\n*\nno\n"), 0644))
	}

	r := runner.New(dir, nil)
	r.Stdout = &strings.Builder{}
	r.Stderr = &strings.Builder{}
	r.BaseEnv = []string{
		"PATH=" + bin + ":" + os.Getenv("PATH"),
		"PARNODES=99",
		"PARA_ARCH=MPI",
	}
	r.KillGrace = time.Second
	return dir, r
}

func literalJob() api.JobReq {
	return api.JobReq{
		JobUuid: "job-1",
		Toolchain: api.Toolchain{
			ParNodes: 8,
			ParaArch: "SMP",
			SysName:  "x86_64-unknown-linux-gnu_smp",
		},
		Steps: []api.Step{
			{Name: "define", Command: "define", Stdin: strPtr("define-inputs.txt")},
			{Name: "dscf", Command: "dscf", Stdout: strPtr("dscf.out")},
			{Name: "ricc2", Command: "ricc2", Stdout: strPtr("ricc2.out")},
		},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func TestRunProducesLogsInOrder(t *testing.T) {
	dir, r := setup(t, true)

	ctrl := gomock.NewController(t)
	gath := mocks.NewMockGatherer(ctrl)
	gomock.InOrder(
		gath.EXPECT().StartJob(gomock.Any()),
		gath.EXPECT().StartStep("define"),
		gath.EXPECT().FinishStep("define", gomock.Any()),
		gath.EXPECT().StartStep("dscf"),
		gath.EXPECT().FinishStep("dscf", gomock.Any()),
		gath.EXPECT().StartStep("ricc2"),
		gath.EXPECT().FinishStep("ricc2", gomock.Any()),
		gath.EXPECT().FinishJob(nil),
	)

	res, err := r.Run(context.Background(), literalJob(), gath)
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Len(t, res.Steps, 3)

	require.Equal(t, []string{"define", "dscf", "ricc2"}, readLines(t, filepath.Join(dir, "order.log")))
	require.FileExists(t, filepath.Join(dir, "dscf.out"))
	require.FileExists(t, filepath.Join(dir, "ricc2.out"))
	require.Equal(t, []string{"ricc2 : all done"}, readLines(t, filepath.Join(dir, "ricc2.out")))

	seen, err := os.ReadFile(filepath.Join(dir, "define.seen"))
	require.NoError(t, err)
	require.Equal(t, "\n\na coord\n*\nno\n", string(seen))

	// define has no stdout file, so its output goes to the runner
	require.Contains(t, r.Stdout.(*strings.Builder).String(), "define ended normally")
}

func TestEnvironmentIsIdenticalAcrossRuns(t *testing.T) {
	dir, r := setup(t, true)

	for i := 0; i < 3; i++ {
		_, err := r.Run(context.Background(), literalJob(), gatherer.Discard{})
		require.NoError(t, err)
	}

	lines := readLines(t, filepath.Join(dir, "env.log"))
	require.Len(t, lines, 9)
	for _, l := range lines {
		require.Equal(t, "PARNODES=8 PARA_ARCH=SMP TURBOMOLE_SYSNAME=x86_64-unknown-linux-gnu_smp", l)
	}
}

func TestRerunTruncatesLogs(t *testing.T) {
	dir, r := setup(t, true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dscf.out"), []byte(strings.Repeat("stale\n", 100)), 0644))

	_, err := r.Run(context.Background(), literalJob(), gatherer.Discard{})
	require.NoError(t, err)
	require.Equal(t, []string{"dscf : all done"}, readLines(t, filepath.Join(dir, "dscf.out")))
}

func TestMissingInputDoesNotStopPipeline(t *testing.T) {
	dir, r := setup(t, false)

	res, err := r.Run(context.Background(), literalJob(), nil)
	require.NoError(t, err)

	require.Equal(t, api.StepFailed, res.Steps[0].Status)
	require.NotNil(t, res.Steps[0].ErrorMessage)
	require.Contains(t, *res.Steps[0].ErrorMessage, "define-inputs.txt")
	require.Equal(t, api.StepOk, res.Steps[1].Status)
	require.Equal(t, api.StepOk, res.Steps[2].Status)

	require.Equal(t, []string{"dscf", "ricc2"}, readLines(t, filepath.Join(dir, "order.log")))
	require.FileExists(t, filepath.Join(dir, "dscf.out"))
	require.FileExists(t, filepath.Join(dir, "ricc2.out"))
}

func TestMissingProgramStillCreatesLog(t *testing.T) {
	dir, r := setup(t, true)
	job := literalJob()
	job.Steps[1].Command = "no-such-program-tmjob"

	res, err := r.Run(context.Background(), job, nil)
	require.NoError(t, err)
	require.Equal(t, api.StepFailed, res.Steps[1].Status)
	require.EqualValues(t, 127, *res.Steps[1].ExitCode)
	require.FileExists(t, filepath.Join(dir, "dscf.out"))
	require.Equal(t, api.StepOk, res.Steps[2].Status)
}

func TestExitCodesAreRecordedNotActedUpon(t *testing.T) {
	dir, r := setup(t, true)
	job := literalJob()
	job.Steps[1].Command = "fail"

	res, err := r.Run(context.Background(), job, nil)
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.EqualValues(t, 3, *res.Steps[1].ExitCode)
	require.Contains(t, *res.Steps[1].Stderr, "fail ended abnormally")
	require.Equal(t, []string{"define", "fail", "ricc2"}, readLines(t, filepath.Join(dir, "order.log")))
}

func TestStopOnFailureSkipsRemaining(t *testing.T) {
	dir, r := setup(t, true)
	job := literalJob()
	job.StopOnFailure = true
	job.Steps[1].Command = "fail"

	ctrl := gomock.NewController(t)
	gath := mocks.NewMockGatherer(ctrl)
	gath.EXPECT().StartJob(gomock.Any())
	gath.EXPECT().StartStep(gomock.Any()).Times(2)
	gath.EXPECT().FinishStep(gomock.Any(), gomock.Any()).Times(2)
	gath.EXPECT().SkipStep("ricc2", "step dscf failed")
	gath.EXPECT().FinishJob(nil)

	res, err := r.Run(context.Background(), job, gath)
	require.NoError(t, err)
	require.Equal(t, api.StepSkipped, res.Steps[2].Status)
	require.Equal(t, []string{"define", "fail"}, readLines(t, filepath.Join(dir, "order.log")))
	require.NoFileExists(t, filepath.Join(dir, "ricc2.out"))
}

func TestCancelSkipsRemaining(t *testing.T) {
	_, r := setup(t, true)
	job := literalJob()
	job.Steps[1].Command = "slow"

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res, err := r.Run(ctx, job, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 10*time.Second)
	require.Equal(t, api.StepFailed, res.Steps[1].Status)
	require.Equal(t, api.StepSkipped, res.Steps[2].Status)
	require.NotNil(t, res.ErrorMessage)
}

func TestArchiveLogs(t *testing.T) {
	dir, r := setup(t, true)
	job := literalJob()
	job.ArchiveLogs = true

	_, err := r.Run(context.Background(), job, nil)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "dscf.out.zst"))
	require.FileExists(t, filepath.Join(dir, "ricc2.out.zst"))
	require.FileExists(t, filepath.Join(dir, "ricc2.out"))
}

func TestRunRejectsEmptyJob(t *testing.T) {
	_, r := setup(t, true)
	_, err := r.Run(context.Background(), api.JobReq{}, nil)
	require.ErrorIs(t, err, runner.ErrNoSteps)

	r.Dir = filepath.Join(r.Dir, "missing")
	_, err = r.Run(context.Background(), literalJob(), nil)
	require.Error(t, err)
}

func TestModuleLoadCannotOverrideExports(t *testing.T) {
	dir, r := setup(t, true)
	modInit := filepath.Join(t.TempDir(), "modules.sh")
	require.NoError(t, os.WriteFile(modInit, []byte("module() { export PARA_ARCH=MPI; export PARNODES=1; }\n"), 0644))

	job := literalJob()
	job.Toolchain.Module = "turbomole/7.8"
	job.Toolchain.ModuleInit = modInit

	res, err := r.Run(context.Background(), job, nil)
	require.NoError(t, err)
	require.False(t, res.Failed())

	want := "PARNODES=8 PARA_ARCH=SMP TURBOMOLE_SYSNAME=x86_64-unknown-linux-gnu_smp"
	require.Equal(t, []string{want, want, want}, readLines(t, filepath.Join(dir, "env.log")))
}

func TestRejectedJobIsStillFinished(t *testing.T) {
	_, r := setup(t, true)

	ctrl := gomock.NewController(t)
	gath := mocks.NewMockGatherer(ctrl)
	gath.EXPECT().FinishJob(gomock.Not(gomock.Nil())).Times(2)

	res, err := r.Run(context.Background(), api.JobReq{JobUuid: "job-1"}, gath)
	require.ErrorIs(t, err, runner.ErrNoSteps)
	require.Equal(t, runner.ErrNoSteps.Error(), *res.ErrorMessage)

	job := literalJob()
	job.Toolchain.ParNodes = -1
	_, err = r.Run(context.Background(), job, gath)
	require.ErrorContains(t, err, "invalid toolchain")
}

func TestInternalErrorIsRecordedAsFailedStep(t *testing.T) {
	_, r := setup(t, true)
	r.Shell = filepath.Join(t.TempDir(), "no-such-shell")

	res, err := r.Run(context.Background(), literalJob(), nil)
	require.ErrorContains(t, err, "failed to run step define")
	require.Len(t, res.Steps, 3)

	require.Equal(t, "define", res.Steps[0].Name)
	require.Equal(t, api.StepFailed, res.Steps[0].Status)
	require.NotNil(t, res.Steps[0].ErrorMessage)
	require.Contains(t, *res.Steps[0].ErrorMessage, "no-such-shell")

	for _, s := range res.Steps[1:] {
		require.Equal(t, api.StepSkipped, s.Status)
		require.Equal(t, "internal error", *s.SkipReason)
	}
}
