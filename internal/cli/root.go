// Package cli provides the command-line interface for capishare.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/capiweb/capishare/internal/logging"
	"github.com/capiweb/capishare/internal/metrics"
	"github.com/capiweb/capishare/internal/version"
)

var (
	// Global flags
	cfgFile     string
	apiBaseURL  string
	scopeName   string
	verbose     bool
	debug       bool
	metricsAddr string

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "capishare",
		Short: "capishare - command-line client for a personal file-sharing service",
		Long: `capishare ` + version.Version + ` - Built: ` + version.BuildTime + `
Browse, organise, upload and download your files and folders.

Scopes:
  mine    your own files (default)
  shared  files other users shared with you
  sent    files you sent to other users`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
			if metricsAddr != "" {
				startMetrics(GetContext(), metricsAddr)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&scopeName, "scope", "s", "mine", "Scope: mine, shared or sent")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd(rootCmd))
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Enable tab-completion for capishare commands",
		Long: `Generate shell completion scripts for capishare.

QUICK TEST (current session only):
  source <(capishare completion bash)
  source <(capishare completion zsh)
  capishare completion fish | source`,
	}

	completionCmd.AddCommand(&cobra.Command{
		Use:   "bash",
		Short: "Generate bash completion script",
		Long: `Generate the autocompletion script for bash.

Linux:
  capishare completion bash | sudo tee /etc/bash_completion.d/capishare

macOS:
  capishare completion bash > $(brew --prefix)/etc/bash_completion.d/capishare`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenBashCompletion(cmd.OutOrStdout())
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "zsh",
		Short: "Generate zsh completion script",
		Long: `Generate the autocompletion script for zsh.

  mkdir -p ~/.zsh/completions
  capishare completion zsh > ~/.zsh/completions/_capishare
  # then add to ~/.zshrc: fpath=(~/.zsh/completions $fpath)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenZshCompletion(cmd.OutOrStdout())
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "fish",
		Short: "Generate fish completion script",
		Long: `Generate the autocompletion script for fish.

  capishare completion fish > ~/.config/fish/completions/capishare.fish`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "powershell",
		Short: "Generate PowerShell completion script",
		Long: `Generate the autocompletion script for PowerShell.

  capishare completion powershell >> $PROFILE`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenPowerShellCompletion(cmd.OutOrStdout())
		},
	})

	return completionCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so repeated Ctrl+C presses do not kill the process mid-cleanup.
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, cancelling operations...\n", sig)
				fmt.Fprintf(os.Stderr, "   Please wait for cleanup to complete.\n\n")
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newRenameCmd())
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newMvCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newThumbsCmd())
	rootCmd.AddCommand(newShellCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

func startMetrics(ctx context.Context, addr string) {
	go func() {
		if err := metrics.Serve(ctx, addr); err != nil {
			GetLogger().Warn().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	GetLogger().Debug().Str("addr", addr).Msg("Serving metrics")
}
