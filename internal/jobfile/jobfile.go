// Package jobfile reads TOML job descriptions. Anything a job file leaves
// out takes the value of the stock Turbomole submission script.
package jobfile

import (
	"errors"
	"fmt"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/tmjob/api"
	"github.com/programme-lv/tmjob/internal/slurm"
	"github.com/programme-lv/tmjob/internal/toolchain"
)

const (
	DefineInput = "define-inputs.txt"
	DscfLog     = "dscf.out"
	Ricc2Log    = "ricc2.out"
)

var ErrUnknownStep = errors.New("unknown step")

// knownPrograms may be used as steps without an explicit cmd
var knownPrograms = mapset.NewSet(
	"define", "dscf", "ridft", "ricc2", "escf", "egrad", "grad", "rdgrad",
	"aoforce", "jobex", "mpshift", "cosmoprep", "x2t", "t2x",
)

// SpecDirectives mirrors the #SBATCH block. A missing value keeps the
// default, an empty string or zero count drops the directive.
type SpecDirectives struct {
	JobName   *string  `toml:"job_name"`
	Partition *string  `toml:"partition"`
	Nodes     *int     `toml:"nodes"`
	NTasks    *int     `toml:"ntasks"`
	Memory    *string  `toml:"mem"`
	Walltime  *string  `toml:"time"`
	QOS       *string  `toml:"qos"`
	Gres      *string  `toml:"gres"`
	Extra     []string `toml:"extra"`
}

type SpecToolchain struct {
	Module     *string           `toml:"module"`
	ModuleInit *string           `toml:"module_init"`
	ParNodes   *int              `toml:"parnodes"`
	ParaArch   *string           `toml:"para_arch"`
	SysName    *string           `toml:"sysname"`
	Env        map[string]string `toml:"env"`
}

type SpecStep struct {
	Name   string  `toml:"name"`
	Cmd    string  `toml:"cmd"`
	Stdin  *string `toml:"stdin"`
	Stdout *string `toml:"stdout"`
}

type SpecInput struct {
	Name    string  `toml:"name"`
	Sha256  *string `toml:"sha256"`
	Url     *string `toml:"url"`
	Content *string `toml:"content"`
}

type specRoot struct {
	JobUuid       string         `toml:"job_uuid"`
	Name          string         `toml:"name"`
	StopOnFailure bool           `toml:"stop_on_failure"`
	ArchiveLogs   bool           `toml:"archive_logs"`
	Directives    SpecDirectives `toml:"directives"`
	Toolchain     SpecToolchain  `toml:"toolchain"`
	Steps         []SpecStep     `toml:"steps"`
	Inputs        []SpecInput    `toml:"inputs"`
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int { return &i }

// DefaultSteps are the steps of the stock script
func DefaultSteps() []api.Step {
	return []api.Step{
		{Name: "define", Command: "define", Stdin: strPtr(DefineInput)},
		{Name: "dscf", Command: "dscf", Stdout: strPtr(DscfLog)},
		{Name: "ricc2", Command: "ricc2", Stdout: strPtr(Ricc2Log)},
	}
}

// Default returns the stock script as a job request with a fresh uuid
func Default() api.JobReq {
	return api.JobReq{
		JobUuid:    uuid.NewString(),
		Directives: api.Directives(slurm.DefaultDirectives()),
		Toolchain:  toolchain.Default(),
		Steps:      DefaultSteps(),
	}
}

// Parse reads a job file and converts it to a job request
func Parse(path string) (api.JobReq, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.JobReq{}, fmt.Errorf("failed to read job file: %w", err)
	}
	return Decode(data)
}

// Decode converts TOML job file content to a job request
func Decode(data []byte) (api.JobReq, error) {
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return api.JobReq{}, fmt.Errorf("failed to parse TOML: %w", err)
	}

	job := Default()
	if root.JobUuid != "" {
		if _, err := uuid.Parse(root.JobUuid); err != nil {
			return api.JobReq{}, fmt.Errorf("invalid job_uuid %q: %w", root.JobUuid, err)
		}
		job.JobUuid = root.JobUuid
	}
	job.Name = root.Name
	job.StopOnFailure = root.StopOnFailure
	job.ArchiveLogs = root.ArchiveLogs

	overlayDirectives(&job.Directives, root.Directives)
	if job.Directives.JobName == "" && root.Directives.JobName == nil {
		job.Directives.JobName = root.Name
	}
	overlayToolchain(&job.Toolchain, root.Toolchain)

	if len(root.Steps) > 0 {
		steps, err := convertSteps(root.Steps)
		if err != nil {
			return api.JobReq{}, err
		}
		job.Steps = steps
	}

	for _, in := range root.Inputs {
		if in.Name == "" {
			return api.JobReq{}, fmt.Errorf("input file is missing a name")
		}
		if in.Content == nil && in.Url == nil {
			return api.JobReq{}, fmt.Errorf("input %s needs content or url", in.Name)
		}
		if in.Url != nil && in.Sha256 == nil {
			return api.JobReq{}, fmt.Errorf("input %s has a url but no sha256", in.Name)
		}
		job.Inputs = append(job.Inputs, api.InputFile{
			Name:    in.Name,
			Sha256:  in.Sha256,
			Url:     in.Url,
			Content: in.Content,
		})
	}

	d := slurm.Directives(job.Directives)
	if err := d.Validate(); err != nil {
		return api.JobReq{}, err
	}
	if err := toolchain.Validate(job.Toolchain); err != nil {
		return api.JobReq{}, fmt.Errorf("invalid toolchain: %w", err)
	}
	return job, nil
}

func overlayString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func overlayInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func overlayDirectives(d *api.Directives, s SpecDirectives) {
	overlayString(&d.JobName, s.JobName)
	overlayString(&d.Partition, s.Partition)
	overlayString(&d.Memory, s.Memory)
	overlayString(&d.Walltime, s.Walltime)
	overlayString(&d.QOS, s.QOS)
	overlayString(&d.Gres, s.Gres)
	overlayInt(&d.Nodes, s.Nodes)
	overlayInt(&d.NTasks, s.NTasks)
	if len(s.Extra) > 0 {
		d.Extra = append([]string(nil), s.Extra...)
	}
}

func overlayToolchain(tc *api.Toolchain, s SpecToolchain) {
	overlayString(&tc.Module, s.Module)
	overlayString(&tc.ModuleInit, s.ModuleInit)
	overlayString(&tc.ParaArch, s.ParaArch)
	overlayString(&tc.SysName, s.SysName)
	overlayInt(&tc.ParNodes, s.ParNodes)
	if len(s.Env) > 0 {
		tc.ExtraEnv = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			tc.ExtraEnv[k] = v
		}
	}
}

func convertSteps(specs []SpecStep) ([]api.Step, error) {
	seen := mapset.NewSet[string]()
	steps := make([]api.Step, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("step is missing a name")
		}
		if !seen.Add(s.Name) {
			return nil, fmt.Errorf("duplicate step name %q", s.Name)
		}
		cmd := s.Cmd
		if cmd == "" {
			if !knownPrograms.Contains(s.Name) {
				return nil, fmt.Errorf("%w %q: set cmd for programs outside the Turbomole suite", ErrUnknownStep, s.Name)
			}
			cmd = s.Name
		}
		steps = append(steps, api.Step{
			Name:    s.Name,
			Command: cmd,
			Stdin:   s.Stdin,
			Stdout:  s.Stdout,
		})
	}
	return steps, nil
}

// Encode renders a job request as a job file.
func Encode(job api.JobReq) ([]byte, error) {
	root := specRoot{
		JobUuid:       job.JobUuid,
		Name:          job.Name,
		StopOnFailure: job.StopOnFailure,
		ArchiveLogs:   job.ArchiveLogs,
		Directives: SpecDirectives{
			JobName:   strPtr(job.Directives.JobName),
			Partition: strPtr(job.Directives.Partition),
			Nodes:     intPtr(job.Directives.Nodes),
			NTasks:    intPtr(job.Directives.NTasks),
			Memory:    strPtr(job.Directives.Memory),
			Walltime:  strPtr(job.Directives.Walltime),
			QOS:       strPtr(job.Directives.QOS),
			Gres:      strPtr(job.Directives.Gres),
			Extra:     job.Directives.Extra,
		},
		Toolchain: SpecToolchain{
			Module:     strPtr(job.Toolchain.Module),
			ModuleInit: strPtr(job.Toolchain.ModuleInit),
			ParNodes:   intPtr(job.Toolchain.ParNodes),
			ParaArch:   strPtr(job.Toolchain.ParaArch),
			SysName:    strPtr(job.Toolchain.SysName),
			Env:        job.Toolchain.ExtraEnv,
		},
	}
	for _, s := range job.Steps {
		root.Steps = append(root.Steps, SpecStep{Name: s.Name, Cmd: s.Command, Stdin: s.Stdin, Stdout: s.Stdout})
	}
	for _, in := range job.Inputs {
		root.Inputs = append(root.Inputs, SpecInput{Name: in.Name, Sha256: in.Sha256, Url: in.Url, Content: in.Content})
	}
	b, err := toml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job file: %w", err)
	}
	return b, nil
}
