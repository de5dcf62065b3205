package api

import (
	"strings"
)

// TrimStrToRect cuts s to at most maxHeight lines of at most maxWidth bytes,
// marking every cut with "[...]".
func TrimStrToRect(s string, maxHeight int, maxWidth int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
		lines = append(lines, "[...]")
	}
	var res strings.Builder
	for i, line := range lines {
		if i > 0 {
			res.WriteString("\n")
		}
		if len(line) > maxWidth {
			res.WriteString(line[:maxWidth] + "[...]")
		} else {
			res.WriteString(line)
		}
	}
	return res.String()
}

// TrimRunData returns a copy of data with its output trimmed for streaming.
func TrimRunData(data *RunData, ioHeight int, ioWidth int) *RunData {
	if data == nil {
		return nil
	}
	trimmed := *data
	trimmed.Stderr = TrimStrToRect(data.Stderr, ioHeight, ioWidth)
	return &trimmed
}
