package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewViperExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := "kernel: bash\ntimeout: 42\nnotebooks:\n  - a.ipynb\n  - b.ipynb\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := NewViper(path)
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}
	if got := v.GetString("kernel"); got != "bash" {
		t.Errorf("kernel = %q, want bash", got)
	}
	if got := v.GetInt("timeout"); got != 42 {
		t.Errorf("timeout = %d, want 42", got)
	}
	if got := v.GetStringSlice("notebooks"); len(got) != 2 || got[0] != "a.ipynb" {
		t.Errorf("notebooks = %v", got)
	}
}

func TestNewViperMissingExplicitFile(t *testing.T) {
	if _, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("NewViper should fail for a missing explicit config file")
	}
}

func TestNewViperHomeConfigOptional(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper() error = %v, want nil when no home config exists", err)
	}
	if v == nil {
		t.Fatal("NewViper() returned nil viper")
	}
}

func TestNewViperEnvBinding(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NBBATCH_KERNEL", "bash")
	t.Setenv("NBBATCH_ALLOW_ERRORS", "true")

	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}
	if got := v.GetString("kernel"); got != "bash" {
		t.Errorf("kernel from env = %q, want bash", got)
	}
	if !v.GetBool("allow-errors") {
		t.Error("allow-errors from env should be true")
	}
}
