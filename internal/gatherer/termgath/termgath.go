package termgath

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/tmjob/api"
)

type TerminalGatherer struct {
	StartedAt time.Time

	w         io.Writer
	stepStart time.Time

	header *color.Color
	ok     *color.Color
	fail   *color.Color
	skip   *color.Color
	dim    *color.Color
}

func New() *TerminalGatherer { return NewWithWriter(os.Stdout) }

func NewWithWriter(w io.Writer) *TerminalGatherer {
	return &TerminalGatherer{
		StartedAt: time.Now(),
		w:         w,
		header:    color.New(color.FgCyan, color.Bold),
		ok:        color.New(color.FgGreen),
		fail:      color.New(color.FgRed, color.Bold),
		skip:      color.New(color.FgYellow),
		dim:       color.New(color.Faint),
	}
}

func (t *TerminalGatherer) StartJob(systemInfo string) {
	t.StartedAt = time.Now()
	t.header.Fprintln(t.w, "== Job started ==")
	if systemInfo != "" {
		t.dim.Fprintln(t.w, systemInfo)
	}
}

func (t *TerminalGatherer) StartStep(name string) {
	t.stepStart = time.Now()
	t.header.Fprintf(t.w, "-> %s\n", name)
}

func (t *TerminalGatherer) FinishStep(name string, data *api.RunData) {
	if data == nil {
		t.ok.Fprintf(t.w, "<- %s finished\n", name)
		return
	}
	if data.StartError != nil {
		t.fail.Fprintf(t.w, "<- %s not started: %s\n", name, *data.StartError)
		return
	}
	c := t.ok
	if !data.Ok() {
		c = t.fail
	}
	c.Fprintf(t.w, "<- %s exit=%d cpu=%dms wall=%dms", name, data.ExitCode, data.CpuMillis, data.WallMillis)
	if data.ExitSignal != nil {
		c.Fprintf(t.w, " signal=%d", *data.ExitSignal)
	}
	t.w.Write([]byte("\n"))
	if !data.Ok() && len(data.Stderr) > 0 {
		t.dim.Fprintf(t.w, "   stderr:\n   %s\n", strings.ReplaceAll(strings.TrimRight(data.Stderr, "\n"), "\n", "\n   "))
	}
}

func (t *TerminalGatherer) SkipStep(name string, reason string) {
	t.skip.Fprintf(t.w, "-- %s skipped: %s\n", name, reason)
}

func (t *TerminalGatherer) FinishJob(errIfAny error) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	if errIfAny != nil {
		t.fail.Fprintf(t.w, "== Job aborted after %s: %v ==\n", dur, errIfAny)
		return
	}
	t.header.Fprintf(t.w, "== Job finished in %s ==\n", dur)
}
