package kernel

import (
	"fmt"
	"regexp"
	"strings"
)

// Spec describes how to drive one kernel/runtime: the executable to
// spawn, how to print a sentinel marker after each cell, and how a cell
// failure shows up on stderr.
type Spec struct {
	Name           string   `json:"-"`
	Command        string   `json:"command"`
	Args           []string `json:"args,omitempty"`
	Marker         string   `json:"marker"`                    // fmt template; %q receives the token
	ErrorPattern   string   `json:"error_pattern,omitempty"`   // regexp applied to a cell's stderr
	PromptPrefixes []string `json:"prompt_prefixes,omitempty"` // REPL noise stripped from stderr lines
	Description    string   `json:"description,omitempty"`

	errorRe *regexp.Regexp
}

// MarkerStatement renders the statement that makes the kernel echo the
// sentinel token on its own stdout line.
func (s Spec) MarkerStatement(token string) string {
	return fmt.Sprintf(s.Marker, token)
}

// MatchesError reports whether the stderr chunk looks like a cell failure.
func (s Spec) MatchesError(stderr string) bool {
	if s.errorRe == nil || stderr == "" {
		return false
	}
	return s.errorRe.MatchString(stderr)
}

// StripPrompts removes leading REPL prompt markers from a line.
func (s Spec) StripPrompts(line string) string {
	for {
		stripped := false
		for _, prefix := range s.PromptPrefixes {
			if rest, ok := strings.CutPrefix(line, prefix); ok {
				line = rest
				stripped = true
			}
		}
		if !stripped {
			return line
		}
	}
}

func (s *Spec) compile() error {
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("kernel %q has no command", s.Name)
	}
	if strings.TrimSpace(s.Marker) == "" {
		return fmt.Errorf("kernel %q has no marker template", s.Name)
	}
	if s.ErrorPattern == "" {
		s.errorRe = nil
		return nil
	}
	re, err := regexp.Compile(s.ErrorPattern)
	if err != nil {
		return fmt.Errorf("kernel %q has invalid error_pattern: %w", s.Name, err)
	}
	s.errorRe = re
	return nil
}
