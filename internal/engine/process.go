package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	kernel "nbbatch/internal/kernel"
	ilogger "nbbatch/internal/logger"
	notebook "nbbatch/internal/notebook"
	parser "nbbatch/internal/parser"
	utils "nbbatch/internal/utils"
)

// stderrSettleDelay gives the kernel's stderr pipe a beat to flush
// before a cell's chunk is attributed. Stdout and stderr are separate
// pipes, so the sentinel marker can arrive first.
const stderrSettleDelay = 20 * time.Millisecond

const errorDetailLimit = 500

var forceKillDelay atomic.Int32

func init() { forceKillDelay.Store(5) }

var (
	commandContext   = exec.CommandContext
	newCommandRunner = func(ctx context.Context, name string, args ...string) commandRunner {
		return &realCmd{cmd: commandContext(ctx, name, args...)}
	}
)

type commandRunner interface {
	SetDir(dir string)
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.ReadCloser, error)
	StderrPipe() (io.ReadCloser, error)
	Start() error
	Wait() error
	Process() processHandle
}

type processHandle interface {
	Signal(sig os.Signal) error
	Kill() error
}

type realCmd struct {
	cmd *exec.Cmd
}

func (c *realCmd) SetDir(dir string)                  { c.cmd.Dir = dir }
func (c *realCmd) StdinPipe() (io.WriteCloser, error) { return c.cmd.StdinPipe() }
func (c *realCmd) StdoutPipe() (io.ReadCloser, error) { return c.cmd.StdoutPipe() }
func (c *realCmd) StderrPipe() (io.ReadCloser, error) { return c.cmd.StderrPipe() }
func (c *realCmd) Start() error                       { return c.cmd.Start() }
func (c *realCmd) Wait() error                        { return c.cmd.Wait() }
func (c *realCmd) Process() processHandle {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process
}

// ProcessEngine drives one kernel subprocess per notebook, feeding code
// cells over stdin and attributing stdout to cells by sentinel markers.
type ProcessEngine struct{}

func New() *ProcessEngine { return &ProcessEngine{} }

func (e *ProcessEngine) Execute(ctx context.Context, doc *notebook.Notebook, opts Options) error {
	spec, err := kernel.Select(opts.Kernel)
	if err != nil {
		return err
	}

	runCtx := ctx
	cancel := func() {}
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	defer cancel()

	session, err := startKernel(runCtx, spec, opts.WorkDir)
	if err != nil {
		return err
	}
	defer session.stop()

	ilogger.LogInfo(fmt.Sprintf("Kernel started: %s (workdir=%s)", spec.Command, opts.WorkDir))

	execCount := 0
	for i := range doc.Cells {
		cell := &doc.Cells[i]
		if !cell.IsCode() {
			continue
		}

		cell.Outputs = []notebook.Output{}
		src := strings.TrimRight(cell.Source.String(), "\n")
		if strings.TrimSpace(src) == "" {
			cell.ExecutionCount = nil
			continue
		}

		execCount++
		count := execCount
		cell.ExecutionCount = &count

		res, err := session.runCell(i, src)
		if err != nil {
			cellErr := session.asCellError(runCtx, i, err)
			cell.Outputs = append(cell.Outputs, errorOutput(cellErr))
			return cellErr
		}

		if res.stdout != "" {
			cell.Outputs = append(cell.Outputs, streamOutput("stdout", res.stdout))
		}
		if res.stderr != "" {
			cell.Outputs = append(cell.Outputs, streamOutput("stderr", res.stderr))
		}
		if res.failed {
			cellErr := &CellError{CellIndex: i, Name: res.errName, Value: res.errValue, Traceback: res.stderr}
			cell.Outputs = append(cell.Outputs, errorOutput(cellErr))
			if !opts.AllowErrors {
				return cellErr
			}
			ilogger.LogWarn(fmt.Sprintf("Cell %d failed (%s), continuing: errors are tolerated", i, cellErr.Name))
		}
	}

	return nil
}

type cellResult struct {
	stdout   string
	stderr   string
	failed   bool
	errName  string
	errValue string
}

type kernelSession struct {
	spec   kernel.Spec
	runner commandRunner
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *stderrSink
	token  string

	stopOnce sync.Once
	finished chan struct{}
}

func startKernel(ctx context.Context, spec kernel.Spec, workDir string) (*kernelSession, error) {
	runner := newCommandRunner(context.Background(), spec.Command, spec.Args...)
	runner.SetDir(workDir)

	stdin, err := runner.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("kernel stdin pipe: %w", err)
	}
	stdoutPipe, err := runner.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("kernel stdout pipe: %w", err)
	}
	stderrPipe, err := runner.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("kernel stderr pipe: %w", err)
	}

	if err := runner.Start(); err != nil {
		return nil, fmt.Errorf("start kernel %s: %w", spec.Command, err)
	}

	sink := &stderrSink{}
	go sink.consume(stderrPipe)

	s := &kernelSession{
		spec:     spec,
		runner:   runner,
		stdin:    stdin,
		stdout:   bufio.NewReaderSize(stdoutPipe, parser.LineReaderSize),
		stderr:   sink,
		token:    fmt.Sprintf("NBBATCH-%d-%x", os.Getpid(), time.Now().UnixNano()),
		finished: make(chan struct{}),
	}

	// Watchdog: on context expiry (per-notebook timeout or caller
	// cancellation) stop the kernel so the stdout scan unblocks.
	go func() {
		select {
		case <-ctx.Done():
			s.terminate()
		case <-s.finished:
		}
	}()

	return s, nil
}

// runCell feeds one cell's source followed by the marker statement and
// collects the cell's stdout and stderr.
func (s *kernelSession) runCell(index int, src string) (cellResult, error) {
	marker := fmt.Sprintf("%s-CELL-%d", s.token, index)

	// The trailing blank line closes any open block before the marker
	// statement runs (python's REPL grammar needs it).
	payload := src + "\n\n" + s.spec.MarkerStatement(marker) + "\n"
	if _, err := io.WriteString(s.stdin, payload); err != nil {
		return cellResult{}, fmt.Errorf("write cell %d to kernel: %w", index, err)
	}

	var stdoutBuf strings.Builder
	err := parser.ScanToMarker(s.stdout, marker, func(line string) {
		stdoutBuf.WriteString(line)
		stdoutBuf.WriteByte('\n')
	}, ilogger.LogWarn)
	if err != nil {
		return cellResult{}, err
	}

	time.Sleep(stderrSettleDelay)
	chunk := filterStderr(s.spec, s.stderr.drain())

	res := cellResult{stdout: stdoutBuf.String(), stderr: chunk}
	if s.spec.MatchesError(chunk) {
		res.failed = true
		res.errName, res.errValue = parseErrorHead(chunk)
	}
	return res, nil
}

// asCellError converts a mid-cell stream failure into a CellError so
// the partially executed document still gets persisted.
func (s *kernelSession) asCellError(ctx context.Context, index int, err error) *CellError {
	chunk := filterStderr(s.spec, s.stderr.drain())

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &CellError{
			CellIndex: index,
			Name:      "Timeout",
			Value:     "notebook exceeded the configured timeout",
			Traceback: chunk,
		}
	case s.spec.MatchesError(chunk):
		name, value := parseErrorHead(chunk)
		return &CellError{CellIndex: index, Name: name, Value: value, Traceback: chunk}
	default:
		return &CellError{
			CellIndex: index,
			Name:      "KernelDied",
			Value:     utils.SafeTruncate(err.Error(), errorDetailLimit),
			Traceback: chunk,
		}
	}
}

// terminate asks the kernel to stop, escalating to a hard kill.
func (s *kernelSession) terminate() {
	proc := s.runner.Process()
	if proc == nil {
		return
	}
	_ = sendTermSignal(proc)

	delay := time.Duration(forceKillDelay.Load()) * time.Second
	select {
	case <-s.finished:
	case <-time.After(delay):
		_ = proc.Kill()
	}
}

// stop closes stdin and reaps the kernel process exactly once.
func (s *kernelSession) stop() {
	s.stopOnce.Do(func() {
		_ = s.stdin.Close()

		done := make(chan struct{})
		go func() {
			_ = s.runner.Wait()
			close(done)
		}()

		delay := time.Duration(forceKillDelay.Load()) * time.Second
		select {
		case <-done:
		case <-time.After(delay):
			if proc := s.runner.Process(); proc != nil {
				_ = sendTermSignal(proc)
				select {
				case <-done:
				case <-time.After(delay):
					_ = proc.Kill()
					<-done
				}
			}
		}
		close(s.finished)
	})
}

// stderrSink accumulates the kernel's stderr; cells take their chunk at
// the marker boundary via drain.
type stderrSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *stderrSink) consume(r io.Reader) {
	chunk := make([]byte, 8*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (s *stderrSink) drain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf.String()
	s.buf.Reset()
	return out
}

// filterStderr strips REPL prompt noise and terminal escapes so the
// chunk embeds cleanly into a notebook output.
func filterStderr(spec kernel.Spec, chunk string) string {
	if chunk == "" {
		return ""
	}
	lines := strings.Split(utils.SanitizeOutput(chunk), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = spec.StripPrompts(line)
		kept = append(kept, line)
	}
	return strings.Trim(strings.Join(kept, "\n"), "\n")
}

// parseErrorHead extracts an error name and message from the last
// meaningful stderr line, e.g. "ValueError: boom".
func parseErrorHead(chunk string) (name, value string) {
	lines := strings.Split(chunk, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if head, rest, ok := strings.Cut(line, ": "); ok && !strings.ContainsAny(head, " \t") {
			return head, utils.SafeTruncate(rest, errorDetailLimit)
		}
		return "CellExecutionError", utils.SafeTruncate(line, errorDetailLimit)
	}
	return "CellExecutionError", ""
}
