package slurm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/programme-lv/tmjob/api"
)

// ScriptCmdPrefix is the prefix of every directive line in a batch script
const ScriptCmdPrefix = "#SBATCH"

var ErrInvalidDirective = errors.New("invalid scheduler directive")

var (
	walltimeRe = regexp.MustCompile(`^(\d+|\d+:\d{2}|\d+:\d{2}:\d{2}|\d+-\d+|\d+-\d+:\d{2}|\d+-\d+:\d{2}:\d{2})$`)
	memoryRe   = regexp.MustCompile(`^\d+[KMGT]?$`)
)

// Directives is the resource request of one job.
type Directives api.Directives

func DefaultDirectives() Directives {
	return Directives{
		Partition: "gpu",
		Nodes:     1,
		NTasks:    8,
		Memory:    "32G",
		Walltime:  "24:00:00",
		QOS:       "normal",
		Gres:      "gpu:1",
	}
}

// Args returns sbatch command line options in a fixed order. Empty fields
// are left out so the cluster defaults apply.
func (d *Directives) Args() []string {
	args := []string{}
	for _, arg := range []string{
		d.JobNameArg(),
		d.PartitionArg(),
		d.NodesArg(),
		d.NTasksArg(),
		d.MemArg(),
		d.TimeArg(),
		d.QOSArg(),
		d.GresArg(),
	} {
		if arg != "" {
			args = append(args, arg)
		}
	}
	return append(args, d.Extra...)
}

// Lines returns the directive block of a batch script.
func (d *Directives) Lines() []string {
	args := d.Args()
	lines := make([]string, 0, len(args))
	for _, arg := range args {
		lines = append(lines, ScriptCmdPrefix+" "+arg)
	}
	return lines
}

func (d *Directives) JobNameArg() string {
	if d.JobName == "" {
		return ""
	}
	return fmt.Sprintf("--job-name=%s", d.JobName)
}

func (d *Directives) PartitionArg() string {
	if d.Partition == "" {
		return ""
	}
	return fmt.Sprintf("--partition=%s", d.Partition)
}

func (d *Directives) NodesArg() string {
	if d.Nodes == 0 {
		return ""
	}
	return fmt.Sprintf("--nodes=%d", d.Nodes)
}

func (d *Directives) NTasksArg() string {
	if d.NTasks == 0 {
		return ""
	}
	return fmt.Sprintf("--ntasks=%d", d.NTasks)
}

func (d *Directives) MemArg() string {
	if d.Memory == "" {
		return ""
	}
	return fmt.Sprintf("--mem=%s", d.Memory)
}

func (d *Directives) TimeArg() string {
	if d.Walltime == "" {
		return ""
	}
	return fmt.Sprintf("--time=%s", d.Walltime)
}

func (d *Directives) QOSArg() string {
	if d.QOS == "" {
		return ""
	}
	return fmt.Sprintf("--qos=%s", d.QOS)
}

func (d *Directives) GresArg() string {
	if d.Gres == "" {
		return ""
	}
	return fmt.Sprintf("--gres=%s", d.Gres)
}

// Validate checks the fields sbatch would otherwise reject at submission.
func (d *Directives) Validate() error {
	counts := []struct {
		name string
		val  int
	}{
		{"nodes", d.Nodes},
		{"ntasks", d.NTasks},
	}
	for _, c := range counts {
		if c.val < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidDirective, c.name, c.val)
		}
	}
	if d.Memory != "" && !memoryRe.MatchString(d.Memory) {
		return fmt.Errorf("%w: memory %q", ErrInvalidDirective, d.Memory)
	}
	if d.Walltime != "" && !walltimeRe.MatchString(d.Walltime) {
		return fmt.Errorf("%w: walltime %q", ErrInvalidDirective, d.Walltime)
	}
	words := [][2]string{
		{"job name", d.JobName},
		{"partition", d.Partition},
		{"qos", d.QOS},
		{"gres", d.Gres},
	}
	for _, w := range words {
		if strings.ContainsAny(w[1], " \t\n") {
			return fmt.Errorf("%w: %s %q contains whitespace", ErrInvalidDirective, w[0], w[1])
		}
	}
	for _, extra := range d.Extra {
		if !strings.HasPrefix(extra, "--") || strings.Contains(extra, "\n") {
			return fmt.Errorf("%w: extra directive %q", ErrInvalidDirective, extra)
		}
	}
	return nil
}
