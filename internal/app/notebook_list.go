package app

import (
	"bytes"
	"fmt"
	"strings"
)

// parseNotebookList parses a stdin-supplied batch list: one notebook
// path per line, blank lines and #-comments skipped. Order is
// preserved; duplicates are rejected because the output naming scheme
// would make two runs of the same stem overwrite each other.
func parseNotebookList(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("notebook list from stdin is empty")
	}

	var paths []string
	seen := make(map[string]struct{})
	for i, line := range strings.Split(string(trimmed), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "-" {
			return nil, fmt.Errorf("line %d: \"-\" is not a valid notebook path", i+1)
		}
		if _, exists := seen[line]; exists {
			return nil, fmt.Errorf("line %d: duplicate notebook path: %s", i+1, line)
		}
		seen[line] = struct{}{}
		paths = append(paths, line)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("notebook list from stdin contains no paths")
	}
	return paths, nil
}
