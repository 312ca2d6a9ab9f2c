// Package parser scans the interleaved stdout of a kernel process,
// attributing output lines to cells by sentinel marker lines.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	LineReaderSize   = 64 * 1024
	lineMaxBytes     = 1 * 1024 * 1024
	linePreviewBytes = 256
)

// ErrMarkerNotSeen is returned when the stream ends before the cell's
// sentinel marker arrives, i.e. the kernel died mid-cell.
var ErrMarkerNotSeen = errors.New("kernel output ended before cell marker")

// ScanToMarker reads lines from r until a line equals marker, invoking
// onLine for every preceding output line (without its newline).
// Overlong lines are truncated to a preview and reported via warnFn.
func ScanToMarker(r *bufio.Reader, marker string, onLine func(string), warnFn func(string)) error {
	if warnFn == nil {
		warnFn = func(string) {}
	}
	for {
		line, tooLong, err := readLineWithLimit(r, lineMaxBytes, linePreviewBytes)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrMarkerNotSeen
			}
			return fmt.Errorf("read kernel stdout: %w", err)
		}

		text := string(line)
		if tooLong {
			warnFn(fmt.Sprintf("Truncated overlong output line (> %d bytes): %s", lineMaxBytes, TruncateBytes(line, 100)))
			if onLine != nil {
				onLine(text + "...")
			}
			continue
		}

		if strings.TrimSpace(text) == marker {
			return nil
		}
		if onLine != nil {
			onLine(text)
		}
	}
}

// readLineWithLimit reads one line, accumulating bufio prefix fragments
// up to maxBytes. Longer lines are flagged and reduced to a preview so
// a runaway cell cannot exhaust memory.
func readLineWithLimit(r *bufio.Reader, maxBytes, previewBytes int) (line []byte, tooLong bool, err error) {
	if r == nil {
		return nil, false, errors.New("reader is nil")
	}

	part, isPrefix, err := r.ReadLine()
	if err != nil {
		return nil, false, err
	}
	if !isPrefix {
		if len(part) > maxBytes {
			return append([]byte(nil), part[:previewBytes]...), true, nil
		}
		return append([]byte(nil), part...), false, nil
	}

	buf := append(make([]byte, 0, len(part)*2), part...)
	for isPrefix {
		part, isPrefix, err = r.ReadLine()
		if err != nil {
			return nil, tooLong, err
		}
		if tooLong {
			continue
		}
		if len(buf)+len(part) > maxBytes {
			tooLong = true
			if len(buf) > previewBytes {
				buf = buf[:previewBytes]
			}
			continue
		}
		buf = append(buf, part...)
	}

	return buf, tooLong, nil
}

// TruncateBytes renders at most maxLen bytes of b, appending an
// ellipsis when the input was cut.
func TruncateBytes(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	if maxLen < 0 {
		return ""
	}
	return string(b[:maxLen]) + "..."
}
