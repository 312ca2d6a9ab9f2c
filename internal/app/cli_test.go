package app

import (
	"io"
	"strings"
	"testing"

	config "nbbatch/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestParseNotebookList(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr string
	}{
		{
			name: "paths with comments and blanks",
			in:   "# batch for today\n01_load.ipynb\n\n02_train.ipynb\n  03_report.ipynb  \n",
			want: []string{"01_load.ipynb", "02_train.ipynb", "03_report.ipynb"},
		},
		{name: "empty input", in: "", wantErr: "empty"},
		{name: "only comments", in: "# nothing\n# here\n", wantErr: "no paths"},
		{name: "dash line", in: "a.ipynb\n-\n", wantErr: "not a valid notebook path"},
		{name: "duplicate", in: "a.ipynb\nb.ipynb\na.ipynb\n", wantErr: "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNotebookList([]byte(tt.in))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseNotebookList() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseNotebookList() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseNotebookList() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("paths[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func swapStdin(t *testing.T, r io.Reader) {
	t.Helper()
	old := stdinReader
	stdinReader = r
	t.Cleanup(func() { stdinReader = old })
}

func TestResolveNotebookList(t *testing.T) {
	v := viper.New()

	got, err := resolveNotebookList([]string{"a.ipynb", "b.ipynb"}, v)
	if err != nil || len(got) != 2 {
		t.Fatalf("positional args: %v, %v", got, err)
	}

	swapStdin(t, strings.NewReader("x.ipynb\ny.ipynb\n"))
	got, err = resolveNotebookList([]string{"-"}, v)
	if err != nil {
		t.Fatalf("stdin list error = %v", err)
	}
	if len(got) != 2 || got[0] != "x.ipynb" || got[1] != "y.ipynb" {
		t.Fatalf("stdin list = %v", got)
	}

	if _, err := resolveNotebookList([]string{"a.ipynb", "-"}, v); err == nil {
		t.Fatal("mixing \"-\" with positional paths should fail")
	}

	v.Set("notebooks", []string{"from_config.ipynb"})
	got, err = resolveNotebookList(nil, v)
	if err != nil || len(got) != 1 || got[0] != "from_config.ipynb" {
		t.Fatalf("config fallback = %v, %v", got, err)
	}
}

func parseFlags(t *testing.T, args ...string) (*cobra.Command, *cliOptions) {
	t.Helper()
	cmd := &cobra.Command{}
	opts := &cliOptions{}
	addRootFlags(cmd.Flags(), opts)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("flag parse error = %v", err)
	}
	return cmd, opts
}

func TestBuildConfigDefaults(t *testing.T) {
	cmd, opts := parseFlags(t)
	cfg, err := buildConfig(cmd, []string{"nb.ipynb"}, opts, viper.New())
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}
	if cfg.Kernel != config.DefaultKernel {
		t.Errorf("Kernel = %q, want %q", cfg.Kernel, config.DefaultKernel)
	}
	if cfg.TimeoutSec != config.DefaultTimeoutSec {
		t.Errorf("TimeoutSec = %d, want %d", cfg.TimeoutSec, config.DefaultTimeoutSec)
	}
	if cfg.OutputDir != config.DefaultOutputDir {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, config.DefaultOutputDir)
	}
	if cfg.AllowErrors {
		t.Error("AllowErrors should default to false")
	}
	if len(cfg.Notebooks) != 1 || cfg.Notebooks[0] != "nb.ipynb" {
		t.Errorf("Notebooks = %v", cfg.Notebooks)
	}
}

func TestBuildConfigFlagsBeatConfigFile(t *testing.T) {
	cmd, opts := parseFlags(t, "--kernel", "bash", "--timeout", "60", "--allow-errors", "--output-dir", "results")

	v := viper.New()
	v.Set("kernel", "sh")
	v.Set("timeout", 900)
	v.Set("allow-errors", false)
	v.Set("output-dir", "other")

	cfg, err := buildConfig(cmd, nil, opts, v)
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}
	if cfg.Kernel != "bash" {
		t.Errorf("Kernel = %q, want bash (flag wins)", cfg.Kernel)
	}
	if cfg.TimeoutSec != 60 {
		t.Errorf("TimeoutSec = %d, want 60 (flag wins)", cfg.TimeoutSec)
	}
	if !cfg.AllowErrors {
		t.Error("AllowErrors should come from the flag")
	}
	if cfg.OutputDir != "results" {
		t.Errorf("OutputDir = %q, want results (flag wins)", cfg.OutputDir)
	}
}

func TestBuildConfigFileBeatsDefaults(t *testing.T) {
	cmd, opts := parseFlags(t)

	v := viper.New()
	v.Set("kernel", "bash")
	v.Set("timeout", 120)
	v.Set("allow-errors", true)
	v.Set("output-dir", "out")

	cfg, err := buildConfig(cmd, nil, opts, v)
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}
	if cfg.Kernel != "bash" || cfg.TimeoutSec != 120 || !cfg.AllowErrors || cfg.OutputDir != "out" {
		t.Errorf("config file values not applied: %+v", cfg)
	}
}

func TestBuildConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"invalid kernel name", []string{"--kernel", "py thon"}},
		{"negative timeout", []string{"--timeout", "-5"}},
		{"blank output dir", []string{"--output-dir", "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, opts := parseFlags(t, tt.args...)
			if _, err := buildConfig(cmd, nil, opts, viper.New()); err == nil {
				t.Fatal("buildConfig() should fail")
			}
		})
	}
}

func TestBuildConfigTimeoutZeroAllowed(t *testing.T) {
	cmd, opts := parseFlags(t, "--timeout", "0")
	cfg, err := buildConfig(cmd, nil, opts, viper.New())
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}
	if cfg.TimeoutSec != 0 {
		t.Errorf("TimeoutSec = %d, want 0", cfg.TimeoutSec)
	}
}
