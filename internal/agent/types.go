// Package agent implements the analytical agent that answers questions about
// the sales table by running SQL through a sandbox.
package agent

import (
	"time"
)

// StoppedOutput is returned when the iteration budget runs out before the
// model produces a final answer.
const StoppedOutput = "O agente parou após atingir o limite de iterações."

// Config holds agent configuration.
type Config struct {
	MaxIterations int
	// PreviewRows is how many rows of the table the instruction shows.
	PreviewRows int
	// Timeout bounds a whole invocation; zero disables the bound.
	Timeout time.Duration
}

// DefaultConfig returns default agent configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 15,
		PreviewRows:   5,
		Timeout:       5 * time.Minute,
	}
}

// Step records one tool execution.
type Step struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Failed bool   `json:"failed,omitempty"`
}

// Result is the outcome of one invocation.
type Result struct {
	Output string `json:"output"`
	Steps  []Step `json:"steps,omitempty"`
}
