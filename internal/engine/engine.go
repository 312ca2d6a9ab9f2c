// Package engine executes notebook documents against a named
// kernel/runtime, embedding captured outputs into the document in place.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	notebook "nbbatch/internal/notebook"
)

// Options control one notebook execution.
type Options struct {
	WorkDir     string        // working directory for the kernel process
	Timeout     time.Duration // whole-notebook budget; 0 = unbounded
	Kernel      string        // kernel registry name; empty selects the default
	AllowErrors bool          // keep executing cells after a failure
}

// Engine runs a notebook document. Implementations mutate the document
// in place and return *CellError when a cell fails, leaving the
// document partially executed but serializable.
type Engine interface {
	Execute(ctx context.Context, doc *notebook.Notebook, opts Options) error
}

// CellError reports an unrecovered failure inside a specific cell.
type CellError struct {
	CellIndex int
	Name      string
	Value     string
	Traceback string
}

func (e *CellError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("cell %d failed: %s", e.CellIndex, e.Name)
	}
	return fmt.Sprintf("cell %d failed: %s: %s", e.CellIndex, e.Name, e.Value)
}

func errorOutput(err *CellError) notebook.Output {
	var traceback []string
	if err.Traceback != "" {
		traceback = strings.Split(err.Traceback, "\n")
	}
	return notebook.Output{
		OutputType: notebook.OutputTypeError,
		EName:      err.Name,
		EValue:     err.Value,
		Traceback:  traceback,
	}
}

func streamOutput(name, text string) notebook.Output {
	return notebook.Output{
		OutputType: notebook.OutputTypeStream,
		Name:       name,
		Text:       notebook.MultilineString(text),
	}
}
