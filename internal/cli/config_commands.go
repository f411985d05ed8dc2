package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/capiweb/capishare/internal/api"
	"github.com/capiweb/capishare/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage capishare configuration",
		Long: `Configuration management commands for capishare.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test API connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for capishare.

The configuration is saved to ~/.config/capishare/config unless --config
is given. Use --force to overwrite an existing file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				cfg = config.NewConfig()
			}

			fmt.Fprintln(out, "capishare Configuration Setup")
			fmt.Fprintln(out, "=============================")
			fmt.Fprintln(out)

			if err := runConfigWizard(stdinReader(), out, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to %s\n", path)
			fmt.Fprintln(out, "Run 'capishare config test' to check the connection.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// runConfigWizard asks for every setting, keeping the current values as
// defaults.
func runConfigWizard(r *bufio.Reader, w io.Writer, cfg *config.Config) error {
	var err error
	ask := func(label string, dst *string) {
		if err != nil {
			return
		}
		*dst, err = promptLine(r, w, label, *dst)
	}

	ask("API URL (e.g. https://share.example.com/api)", &cfg.APIBaseURL)
	ask("API token (leave empty to use a session cookie)", &cfg.APIToken)
	if err == nil && cfg.APIToken == "" {
		ask("Session cookie", &cfg.SessionCookie)
		ask("CSRF token", &cfg.CSRFToken)
	}
	ask("Username", &cfg.Username)
	ask("Download directory", &cfg.DownloadDir)
	ask("Proxy mode (no-proxy, system, basic, ntlm)", &cfg.ProxyMode)
	if err != nil {
		return err
	}

	if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
		port := ""
		if cfg.ProxyPort > 0 {
			port = strconv.Itoa(cfg.ProxyPort)
		}
		ask("Proxy host", &cfg.ProxyHost)
		ask("Proxy port", &port)
		ask("Proxy user", &cfg.ProxyUser)
		if err != nil {
			return err
		}
		if port != "" {
			p, perr := strconv.Atoi(port)
			if perr != nil || p <= 0 || p > 65535 {
				return fmt.Errorf("invalid proxy port %q", port)
			}
			cfg.ProxyPort = p
		}
	}
	return nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/capishare/config)
  2. .env file in the working directory
  3. Environment variables (CAPISHARE_API_URL, CAPISHARE_API_TOKEN, ...)
  4. Command-line flags (--api-url)

Priority: flags > environment > .env > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if err := config.LoadDotEnv(""); err != nil {
				GetLogger().Warn().Err(err).Msg("Ignoring unreadable .env file")
			}
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.ApplyEnv(apiBaseURL)

			printConfig(cmd.OutOrStdout(), cfg.Redacted(), path)
			return nil
		},
	}

	return cmd
}

func orNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// printConfig writes a redacted configuration.
func printConfig(w io.Writer, cfg config.Config, path string) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Server:")
	fmt.Fprintf(w, "  API URL:        %s\n", orNotSet(cfg.APIBaseURL))
	fmt.Fprintf(w, "  API Token:      %s\n", orNotSet(cfg.APIToken))
	fmt.Fprintf(w, "  Session Cookie: %s\n", orNotSet(cfg.SessionCookie))
	fmt.Fprintf(w, "  Username:       %s\n", orNotSet(cfg.Username))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Proxy:")
	fmt.Fprintf(w, "  Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(w, "  Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(w, "  Port: %d\n", cfg.ProxyPort)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Transfers:")
	fmt.Fprintf(w, "  Download Directory: %s\n", cfg.DownloadDir)
	fmt.Fprintf(w, "  Auto-hide:          %ds\n", cfg.AutoHideSeconds)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Thumbnails:")
	fmt.Fprintf(w, "  Max Concurrent: %d\n", cfg.ThumbMaxConcurrent)
	fmt.Fprintf(w, "  Min Spacing:    %dms\n", cfg.ThumbMinSpacingMs)
	fmt.Fprintf(w, "  Retry Delay:    %ds\n", cfg.ThumbRetryDelaySeconds)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(w, "  (file does not exist - using defaults)")
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test API connection",
		Long: `Test the API connection with current configuration.

Use this to verify your credentials and network connectivity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Testing API Connection")
			fmt.Fprintln(out, "======================")
			fmt.Fprintln(out)

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForConnection(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			scope, err := currentScope()
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "API URL: %s\n", cfg.APIBaseURL)
			fmt.Fprintln(out, "Testing connection...")
			fmt.Fprintln(out)

			client, err := api.NewClient(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create API client: %w", err)
			}

			ctx, cancel := context.WithTimeout(GetContext(), 10*time.Second)
			defer cancel()

			folders, err := client.ListFolders(ctx, nil, scope)
			if err != nil {
				logger.Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}

			logger.Info().Msg("Connection test successful")
			fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
			fmt.Fprintf(out, "  %d folders in %s\n", len(folders), scope.RootLabel())
			return nil
		},
	}

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: capishare config init")
			}
			return nil
		},
	}

	return cmd
}
