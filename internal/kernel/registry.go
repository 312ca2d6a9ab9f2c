package kernel

import (
	"fmt"
	"strings"
)

const defaultKernelName = "python3"

var builtins = map[string]Spec{
	"python3": {
		Command:        "python3",
		Args:           []string{"-i", "-q", "-u"},
		Marker:         "print(%q, flush=True)",
		ErrorPattern:   `(?m)^(Traceback \(most recent call last\):|SyntaxError|IndentationError)`,
		PromptPrefixes: []string{">>> ", "... ", ">>>", "..."},
		Description:    "CPython 3 interactive interpreter",
	},
	"python": {
		Command:        "python",
		Args:           []string{"-i", "-q", "-u"},
		Marker:         "print(%q, flush=True)",
		ErrorPattern:   `(?m)^(Traceback \(most recent call last\):|SyntaxError|IndentationError)`,
		PromptPrefixes: []string{">>> ", "... ", ">>>", "..."},
		Description:    "CPython interactive interpreter",
	},
	"bash": {
		Command:      "bash",
		Args:         []string{"--noediting", "-s"},
		Marker:       "echo %q",
		ErrorPattern: `(?m)^bash: `,
		Description:  "GNU bash shell",
	},
	"sh": {
		Command:      "sh",
		Args:         []string{"-s"},
		Marker:       "echo %q",
		ErrorPattern: `(?m)^sh: `,
		Description:  "POSIX shell",
	},
}

// Builtins returns a copy of the built-in kernel specs, keyed by name.
func Builtins() map[string]Spec {
	out := make(map[string]Spec, len(builtins))
	for name, spec := range builtins {
		spec.Name = name
		out[name] = spec
	}
	return out
}

// Select resolves a kernel name to its spec, consulting the user
// registry first and falling back to the built-ins. An empty name
// selects the default kernel.
func Select(name string) (Spec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = defaultKernelName
	}

	specs := registry()
	spec, ok := specs[key]
	if !ok {
		return Spec{}, fmt.Errorf("unsupported kernel %q", name)
	}
	spec.Name = key
	if err := spec.compile(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}
