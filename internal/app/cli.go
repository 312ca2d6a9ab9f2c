package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	config "nbbatch/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const version = "1.0.0"

var (
	exitFn                = os.Exit
	stdinReader io.Reader = os.Stdin
)

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit %d", e.code)
}

type cliOptions struct {
	Kernel      string
	TimeoutSec  int
	AllowErrors bool
	OutputDir   string

	Cleanup    bool
	Version    bool
	ConfigFile string
}

// Run is the program entrypoint for cmd/nbbatch/main.go.
func Run() {
	exitFn(run())
}

func run() int {
	cmd := newRootCommand()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s [flags] <notebook.ipynb>... | -", toolName),
		Short:         "Batch-execute notebook documents against a kernel",
		Long: fmt.Sprintf(`%s executes an ordered list of notebook documents: everything before
the last two runs sequentially, the last two run in parallel. Every
attempted notebook is saved to the output directory with an _executed
or _FAILED suffix.`, toolName),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Version {
				fmt.Printf("%s version %s\n", toolName, version)
				return nil
			}
			if opts.Cleanup {
				code := runCleanupMode()
				if code == 0 {
					return nil
				}
				return exitError{code: code}
			}

			exitCode := runWithLoggerAndCleanup(func() int {
				v, err := config.NewViper(opts.ConfigFile)
				if err != nil {
					fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
					logError(err.Error())
					return 1
				}

				logInfo("Batch started")

				cfg, err := buildConfig(cmd, args, opts, v)
				if err != nil {
					fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
					logError(err.Error())
					return 1
				}
				logInfo(fmt.Sprintf("Resolved config: notebooks=%d, kernel=%s, timeout=%ds, allow_errors=%t",
					len(cfg.Notebooks), cfg.Kernel, cfg.TimeoutSec, cfg.AllowErrors))
				return runBatch(cfg)
			})

			if exitCode == 0 {
				return nil
			}
			return exitError{code: exitCode}
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	addRootFlags(cmd.Flags(), opts)
	cmd.AddCommand(newVersionCommand(), newCleanupCommand())

	return cmd
}

func addRootFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.StringVar(&opts.ConfigFile, "config", "", "Config file path (default: $HOME/.nbbatch/config.*)")
	fs.BoolVarP(&opts.Version, "version", "v", false, "Print version and exit")
	fs.BoolVar(&opts.Cleanup, "cleanup", false, "Clean up old logs and exit")

	fs.StringVar(&opts.Kernel, "kernel", config.DefaultKernel, "Kernel name (also via NBBATCH_KERNEL or kernels.json)")
	fs.IntVar(&opts.TimeoutSec, "timeout", config.DefaultTimeoutSec, "Per-notebook timeout in seconds; 0 disables the limit")
	fs.BoolVar(&opts.AllowErrors, "allow-errors", false, "Keep executing cells after a failure and do not fail the batch for parallel errors")
	fs.StringVar(&opts.OutputDir, "output-dir", config.DefaultOutputDir, "Directory for executed/failed notebook copies")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version and exit",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s version %s\n", toolName, version)
			return nil
		},
	}
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "cleanup",
		Short:         "Clean up old logs and exit",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := runCleanupMode()
			if code == 0 {
				return nil
			}
			return exitError{code: code}
		},
	}
}

func runWithLoggerAndCleanup(fn func() int) (exitCode int) {
	logger, err := NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to initialize logger: %v\n", err)
		return 1
	}
	setLogger(logger)

	defer func() {
		logger := activeLogger()
		if logger != nil {
			logger.Flush()
		}
		if err := closeLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: failed to close logger: %v\n", err)
		}
		if logger == nil {
			return
		}

		if exitCode != 0 {
			if entries := logger.ExtractRecentErrors(10); len(entries) > 0 {
				fmt.Fprintln(os.Stderr, "\n=== Recent Errors ===")
				for _, entry := range entries {
					fmt.Fprintln(os.Stderr, entry)
				}
			}
		}
		if config.EnvFlagEnabled("NBBATCH_KEEP_LOGS") {
			fmt.Fprintf(os.Stderr, "Log file kept: %s\n", logger.Path())
			return
		}
		_ = logger.RemoveLogFile()
	}()
	defer runCleanupHook()

	// Clean up stale logs from previous runs.
	scheduleStartupCleanup()

	return fn()
}

// buildConfig resolves the run parameters: flags take precedence over
// NBBATCH_* env and the config file, which take precedence over the
// built-in defaults.
func buildConfig(cmd *cobra.Command, args []string, opts *cliOptions, v *viper.Viper) (*config.Config, error) {
	cfg := &config.Config{
		Kernel:     config.DefaultKernel,
		TimeoutSec: config.DefaultTimeoutSec,
		OutputDir:  config.DefaultOutputDir,
	}

	if cmd.Flags().Changed("kernel") {
		cfg.Kernel = strings.TrimSpace(opts.Kernel)
		if cfg.Kernel == "" {
			return nil, fmt.Errorf("--kernel flag requires a value")
		}
	} else if val := strings.TrimSpace(v.GetString("kernel")); val != "" {
		cfg.Kernel = val
	}
	if err := config.ValidateKernelName(cfg.Kernel); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutSec = opts.TimeoutSec
	} else if v.IsSet("timeout") {
		cfg.TimeoutSec = v.GetInt("timeout")
	}
	if cfg.TimeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be >= 0, got %d", cfg.TimeoutSec)
	}

	if cmd.Flags().Changed("allow-errors") {
		cfg.AllowErrors = opts.AllowErrors
	} else {
		cfg.AllowErrors = v.GetBool("allow-errors")
	}

	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir = strings.TrimSpace(opts.OutputDir)
		if cfg.OutputDir == "" {
			return nil, fmt.Errorf("--output-dir flag requires a value")
		}
	} else if val := strings.TrimSpace(v.GetString("output-dir")); val != "" {
		cfg.OutputDir = val
	}

	notebooks, err := resolveNotebookList(args, v)
	if err != nil {
		return nil, err
	}
	cfg.Notebooks = notebooks

	return cfg, nil
}

// resolveNotebookList decides where the batch list comes from:
// positional arguments, stdin ("-"), or the notebooks key in the
// config file, in that order.
func resolveNotebookList(args []string, v *viper.Viper) ([]string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdinReader)
		if err != nil {
			return nil, fmt.Errorf("read notebook list from stdin: %w", err)
		}
		return parseNotebookList(data)
	}

	if len(args) > 0 {
		for _, arg := range args {
			if arg == "-" {
				return nil, fmt.Errorf("\"-\" (stdin) cannot be combined with positional notebook paths")
			}
		}
		return args, nil
	}

	return v.GetStringSlice("notebooks"), nil
}
