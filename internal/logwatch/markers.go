package logwatch

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

type Status string

const (
	Succeeded  Status = "succeeded"
	Errored    Status = "errored"
	Incomplete Status = "incomplete"
	TimedOut   Status = "timed_out"
	Missing    Status = "missing"
)

const DefaultTailLines = 10

// Markers tell a finished log from a broken one.
type Markers struct {
	// Success lists substrings that must all appear in the tail
	Success []string
	// Error matches a line reporting abnormal termination
	Error *regexp.Regexp
	// TailLines is how many trailing lines Classify looks at
	TailLines int
}

// TurbomoleMarkers matches the closing lines Turbomole programs print,
// e.g. "ricc2 : all done" and "dscf ended abnormally".
func TurbomoleMarkers() Markers {
	return Markers{
		Success:   []string{"all done"},
		Error:     regexp.MustCompile(`(?i)ended abnormally`),
		TailLines: DefaultTailLines,
	}
}

// WrapperMarkers matches logs of batch wrappers that print their own
// accounting lines around the program output.
func WrapperMarkers() Markers {
	return Markers{
		Success:   []string{"Total processing time", "Job finished:"},
		Error:     regexp.MustCompile(`(?i)Job terminated`),
		TailLines: DefaultTailLines,
	}
}

func (m Markers) successIn(lines []string) bool {
	if len(m.Success) == 0 {
		return false
	}
	for _, marker := range m.Success {
		found := false
		for _, line := range lines {
			if strings.Contains(line, marker) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m Markers) errorIn(lines []string) bool {
	if m.Error == nil {
		return false
	}
	for _, line := range lines {
		if m.Error.MatchString(line) {
			return true
		}
	}
	return false
}

// Classify looks at the last lines of a log. Success wins over error when
// both are present.
func Classify(path string, m Markers) (Status, error) {
	n := m.TailLines
	if n <= 0 {
		n = DefaultTailLines
	}
	tail, err := tailLines(path, n)
	if err != nil {
		return "", err
	}
	switch {
	case m.successIn(tail):
		return Succeeded, nil
	case m.errorIn(tail):
		return Errored, nil
	default:
		return Incomplete, nil
	}
}

// hasAnyMarker reports whether any line of the log carries a single success
// or error marker.
func hasAnyMarker(path string, m Markers) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := newScanner(f)
	for sc.Scan() {
		line := sc.Text()
		for _, marker := range m.Success {
			if strings.Contains(line, marker) {
				return true, nil
			}
		}
		if m.Error != nil && m.Error.MatchString(line) {
			return true, nil
		}
	}
	return false, sc.Err()
}

func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := newScanner(f)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return ring, nil
}

func newScanner(f *os.File) *bufio.Scanner {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return sc
}
