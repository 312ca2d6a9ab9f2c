package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	config "nbbatch/internal/config"
	ilogger "nbbatch/internal/logger"

	"github.com/goccy/go-json"
)

// registryFile is the on-disk shape of $HOME/.nbbatch/kernels.json.
// User entries are merged over the built-ins; a user entry with the
// same name as a built-in replaces it.
type registryFile struct {
	Kernels map[string]Spec `json:"kernels"`
}

var (
	registryOnce   sync.Once
	registryCached map[string]Spec
)

func registry() map[string]Spec {
	registryOnce.Do(func() {
		registryCached = loadRegistry()
	})
	if registryCached == nil {
		return Builtins()
	}
	return registryCached
}

func loadRegistry() map[string]Spec {
	merged := Builtins()

	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return merged
	}

	configDir := filepath.Clean(filepath.Join(home, ".nbbatch"))
	configPath := filepath.Clean(filepath.Join(configDir, "kernels.json"))
	rel, err := filepath.Rel(configDir, configPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return merged
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- path is fixed under user home and validated to stay within configDir
	if err != nil {
		if !os.IsNotExist(err) {
			ilogger.LogWarn(fmt.Sprintf("Failed to read kernel registry %s: %v; using built-ins", configPath, err))
		}
		return merged
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		ilogger.LogWarn(fmt.Sprintf("Failed to parse kernel registry %s: %v; using built-ins", configPath, err))
		return merged
	}

	for name, spec := range file.Kernels {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if err := config.ValidateKernelName(key); err != nil {
			ilogger.LogWarn(fmt.Sprintf("Skipping kernel registry entry: %v", err))
			continue
		}
		spec.Name = key
		if base, ok := merged[key]; ok {
			// Partial overrides keep the built-in defaults.
			if strings.TrimSpace(spec.Command) == "" {
				spec.Command = base.Command
			}
			if len(spec.Args) == 0 {
				spec.Args = base.Args
			}
			if strings.TrimSpace(spec.Marker) == "" {
				spec.Marker = base.Marker
			}
			if spec.ErrorPattern == "" {
				spec.ErrorPattern = base.ErrorPattern
			}
			if len(spec.PromptPrefixes) == 0 {
				spec.PromptPrefixes = base.PromptPrefixes
			}
		}
		merged[key] = spec
	}

	return merged
}
