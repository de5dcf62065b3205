package slurm_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/programme-lv/tmjob/api"
	"github.com/programme-lv/tmjob/internal/slurm"
	"github.com/programme-lv/tmjob/internal/toolchain"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func literalJob() api.JobReq {
	return api.JobReq{
		Directives: api.Directives(slurm.DefaultDirectives()),
		Toolchain:  toolchain.Default(),
		Steps: []api.Step{
			{Name: "define", Command: "define", Stdin: strPtr("define-inputs.txt")},
			{Name: "dscf", Command: "dscf", Stdout: strPtr("dscf.out")},
			{Name: "ricc2", Command: "ricc2", Stdout: strPtr("ricc2.out")},
		},
	}
}

func TestDirectiveLines(t *testing.T) {
	d := slurm.DefaultDirectives()
	require.Equal(t, []string{
		"#SBATCH --partition=gpu",
		"#SBATCH --nodes=1",
		"#SBATCH --ntasks=8",
		"#SBATCH --mem=32G",
		"#SBATCH --time=24:00:00",
		"#SBATCH --qos=normal",
		"#SBATCH --gres=gpu:1",
	}, d.Lines())

	d = slurm.Directives{Partition: "short", Extra: []string{"--exclusive"}}
	require.Equal(t, []string{"--partition=short", "--exclusive"}, d.Args())
}

func TestValidate(t *testing.T) {
	for _, wt := range []string{"30", "30:00", "24:00:00", "2-00", "2-12:00", "1-00:00:00"} {
		d := slurm.Directives{Walltime: wt}
		require.NoError(t, d.Validate(), wt)
	}

	bad := []slurm.Directives{
		{Walltime: "1 day"},
		{Walltime: "24h"},
		{Memory: "32GB"},
		{Memory: "lots"},
		{Nodes: -1},
		{Partition: "gpu long"},
		{Extra: []string{"exclusive"}},
	}
	for _, d := range bad {
		err := d.Validate()
		require.Error(t, err)
		require.True(t, errors.Is(err, slurm.ErrInvalidDirective))
	}
}

func TestValidateReportsFirstInvalidField(t *testing.T) {
	d := slurm.Directives{Nodes: 0, NTasks: 0}
	require.NoError(t, d.Validate())

	d = slurm.Directives{Nodes: -1, NTasks: -2, JobName: "a b", Partition: "c d", QOS: "e f", Gres: "g h"}
	for i := 0; i < 10; i++ {
		require.EqualError(t, d.Validate(), "invalid scheduler directive: nodes must not be negative, got -1")
	}

	d.Nodes, d.NTasks = 1, 1
	for i := 0; i < 10; i++ {
		require.EqualError(t, d.Validate(), `invalid scheduler directive: job name "a b" contains whitespace`)
	}
}

func TestScriptIsDeterministic(t *testing.T) {
	first, err := slurm.Script(literalJob())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := slurm.Script(literalJob())
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	require.Equal(t, `#!/bin/bash
#SBATCH --partition=gpu
#SBATCH --nodes=1
#SBATCH --ntasks=8
#SBATCH --mem=32G
#SBATCH --time=24:00:00
#SBATCH --qos=normal
#SBATCH --gres=gpu:1

[ -f /etc/profile.d/modules.sh ] && . /etc/profile.d/modules.sh
module load turbomole/7.8
export PARNODES=8
export PARA_ARCH=SMP
export TURBOMOLE_SYSNAME=x86_64-unknown-linux-gnu_smp

define < define-inputs.txt
dscf > dscf.out
ricc2 > ricc2.out
`, first)
}

func TestScriptStopOnFailure(t *testing.T) {
	job := literalJob()
	job.StopOnFailure = true
	script, err := slurm.Script(job)
	require.NoError(t, err)
	require.Contains(t, script, "\nset -e\n")
}

func TestScriptRejectsInvalidJob(t *testing.T) {
	job := literalJob()
	job.Directives.Memory = "a lot"
	_, err := slurm.Script(job)
	require.ErrorIs(t, err, slurm.ErrInvalidDirective)
}

func TestParseJobID(t *testing.T) {
	id, err := slurm.ParseJobID("123456\n")
	require.NoError(t, err)
	require.EqualValues(t, 123456, id)

	id, err = slurm.ParseJobID("77;cluster-a\n")
	require.NoError(t, err)
	require.EqualValues(t, 77, id)

	_, err = slurm.ParseJobID("")
	require.Error(t, err)

	_, err = slurm.ParseJobID("Submitted batch job")
	require.Error(t, err)
}

func TestSubmitWithFakeSbatch(t *testing.T) {
	dir := t.TempDir()
	sbatch := filepath.Join(dir, "sbatch")
	err := os.WriteFile(sbatch, []byte("#!/bin/bash\necho \"$@\" > args.txt\necho '4242;testcluster'\n"), 0755)
	require.NoError(t, err)

	s := slurm.NewSubmitter(sbatch, nil)
	id, err := s.Submit(context.Background(), "run.sh", dir)
	require.NoError(t, err)
	require.EqualValues(t, 4242, id)

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	require.Equal(t, "--parsable run.sh\n", string(args))
}

func TestSubmitReportsFailure(t *testing.T) {
	dir := t.TempDir()
	sbatch := filepath.Join(dir, "sbatch")
	err := os.WriteFile(sbatch, []byte("#!/bin/bash\necho 'invalid partition' >&2\nexit 1\n"), 0755)
	require.NoError(t, err)

	_, err = slurm.NewSubmitter(sbatch, nil).Submit(context.Background(), "run.sh", dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid partition")
}
