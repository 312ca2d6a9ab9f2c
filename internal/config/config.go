package config

import (
	"fmt"
	"os"
	"strings"

	utils "nbbatch/internal/utils"
)

// Defaults applied when neither flags, env, nor config file say otherwise.
const (
	DefaultKernel     = "python3"
	DefaultTimeoutSec = 3600
	DefaultOutputDir  = "executed"
)

// parallelWorkerCap bounds the parallel phase of a batch.
const parallelWorkerCap = 2

// Config holds the resolved parameters for one batch run.
type Config struct {
	Notebooks   []string
	Kernel      string
	TimeoutSec  int // per notebook; 0 = unbounded
	AllowErrors bool
	OutputDir   string
}

// WorkerCount returns the pool size for n parallel notebooks.
func WorkerCount(n int) int {
	return utils.Min(n, parallelWorkerCap)
}

// EnvFlagEnabled returns true when the environment variable exists and is not
// explicitly set to a falsey value ("0/false/no/off").
func EnvFlagEnabled(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func ParseBoolFlag(val string, defaultValue bool) bool {
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// EnvFlagDefaultTrue returns true unless the env var is explicitly set to
// false/0/no/off.
func EnvFlagDefaultTrue(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return true
	}
	return ParseBoolFlag(val, true)
}

// ValidateKernelName rejects names that could escape into shell syntax
// or file paths.
func ValidateKernelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("kernel name is empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-', r == '_':
		default:
			return fmt.Errorf("kernel name %q contains invalid character %q", name, r)
		}
	}
	return nil
}
