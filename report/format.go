package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

const ruleWidth = 60

// Text renders the report as the human-readable block written by the file bridge
func (r *Report) Text() string {
	lines := []string{
		fmt.Sprintf("Exception Report - %s", r.Timestamp),
		strings.Repeat("=", ruleWidth),
		fmt.Sprintf("Type: %s", r.ExceptionType),
		fmt.Sprintf("Message: %s", r.ExceptionMessage),
	}

	if r.Scope != "" {
		lines = append(lines, fmt.Sprintf("Scope: %s", r.Scope))
	}

	lines = append(lines,
		fmt.Sprintf("Thread: %s (ID: %d)", r.ThreadInfo.Name, r.ThreadInfo.ID),
		fmt.Sprintf("Main Thread: %t", r.ThreadInfo.IsMain),
		"",
		"Traceback:",
		strings.Repeat("-", ruleWidth),
		r.Traceback,
		strings.Repeat("=", ruleWidth),
		"",
	)

	return strings.Join(lines, "\n")
}

// JSON returns the report as indented JSON
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}
