// Package notebook models nbformat v4 documents: ordered cells mixing
// code, markdown and captured outputs, serialized as JSON.
package notebook

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// Version is the nbformat major version this package reads and writes.
	Version = 4

	CellTypeCode     = "code"
	CellTypeMarkdown = "markdown"
	CellTypeRaw      = "raw"

	OutputTypeStream        = "stream"
	OutputTypeError         = "error"
	OutputTypeExecuteResult = "execute_result"
	OutputTypeDisplayData   = "display_data"
)

// Notebook is an in-memory nbformat v4 document. The execution engine
// mutates it in place; Write persists it back to disk.
type Notebook struct {
	Cells         []Cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// Cell is a single notebook cell. Outputs and ExecutionCount are only
// meaningful for code cells.
type Cell struct {
	CellType       string          `json:"cell_type"`
	ExecutionCount *int            `json:"execution_count,omitempty"`
	Metadata       map[string]any  `json:"metadata"`
	Outputs        []Output        `json:"outputs,omitempty"`
	Source         MultilineString `json:"source"`
}

// Output is one captured output entry. The populated fields depend on
// OutputType: stream uses Name/Text, error uses EName/EValue/Traceback,
// execute_result and display_data use Data/Metadata.
type Output struct {
	OutputType     string          `json:"output_type"`
	Name           string          `json:"name,omitempty"`
	Text           MultilineString `json:"text,omitempty"`
	EName          string          `json:"ename,omitempty"`
	EValue         string          `json:"evalue,omitempty"`
	Traceback      []string        `json:"traceback,omitempty"`
	Data           map[string]any  `json:"data,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	ExecutionCount *int            `json:"execution_count,omitempty"`
}

// MultilineString is the nbformat text encoding: either a single JSON
// string or an array of line fragments. Unmarshal accepts both; Marshal
// always emits the array-of-lines form.
type MultilineString string

func (m *MultilineString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = MultilineString(s)
		return nil
	}

	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("multiline string is neither string nor string array: %w", err)
	}
	*m = MultilineString(strings.Join(lines, ""))
	return nil
}

func (m MultilineString) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Lines())
}

// Lines splits the text into nbformat line fragments: every fragment
// but possibly the last keeps its trailing newline.
func (m MultilineString) Lines() []string {
	s := string(m)
	if s == "" {
		return []string{}
	}
	var lines []string
	for {
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:idx+1])
		s = s[idx+1:]
		if s == "" {
			break
		}
	}
	return lines
}

func (m MultilineString) String() string { return string(m) }

// IsCode reports whether the cell holds executable source.
func (c *Cell) IsCode() bool {
	return c.CellType == CellTypeCode
}

// Read loads and validates a notebook document from disk.
func Read(path string) (*Notebook, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- notebook paths come from the configured batch list
	if err != nil {
		return nil, err
	}

	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("parse notebook %s: %w", path, err)
	}
	if nb.NBFormat != 0 && nb.NBFormat < Version {
		return nil, fmt.Errorf("notebook %s uses unsupported nbformat %d (want >= %d)", path, nb.NBFormat, Version)
	}
	return &nb, nil
}

// Write persists the document. Defaults for nbformat fields are filled
// in so a hand-built document round-trips as valid v4.
func (nb *Notebook) Write(path string) error {
	if nb.NBFormat == 0 {
		nb.NBFormat = Version
	}
	if nb.Metadata == nil {
		nb.Metadata = map[string]any{}
	}
	if nb.Cells == nil {
		nb.Cells = []Cell{}
	}

	data, err := json.MarshalIndent(nb, "", " ")
	if err != nil {
		return fmt.Errorf("encode notebook: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write notebook %s: %w", path, err)
	}
	return nil
}
