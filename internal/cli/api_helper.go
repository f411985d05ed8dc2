package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/capiweb/capishare/internal/config"
	"github.com/capiweb/capishare/internal/fips"
	chttp "github.com/capiweb/capishare/internal/http"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/navigator"
	"github.com/capiweb/capishare/internal/services"
)

// loadConfig reads the config file, the .env overlay, CAPISHARE_* variables
// and --api-url, in increasing priority. A missing proxy password is
// prompted for.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(""); err != nil {
		GetLogger().Warn().Err(err).Msg("Ignoring unreadable .env file")
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(apiBaseURL)

	if chttp.NeedsProxyPassword(cfg) {
		pw, err := promptSecret(os.Stdin, os.Stderr, fmt.Sprintf("Proxy password for %s: ", cfg.ProxyUser))
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = pw
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if warning := fips.ProxyWarning(fips.Enabled, cfg.ProxyMode); warning != "" {
		GetLogger().Warn().Msg(warning)
	}
	return cfg, nil
}

// newApp loads the configuration and builds the application root.
// The caller must Close it.
func newApp() (*services.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app, err := services.NewApp(cfg, GetLogger())
	if err != nil {
		return nil, err
	}
	return app, nil
}

// currentScope parses the --scope flag.
func currentScope() (models.Scope, error) {
	return models.ParseScope(scopeName)
}

// cliNavigatorOptions drops the on-screen minimum loading time, which only
// exists to avoid flicker in interactive views.
func cliNavigatorOptions() navigator.Options {
	opts := navigator.DefaultOptions()
	opts.MinLoading = time.Millisecond
	return opts
}

// parseID parses a positive resource id.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseFolderArg parses a folder argument. "", "root" and "/" mean the
// scope root.
func parseFolderArg(s string) (*int64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "root", "/":
		return nil, nil
	}
	id, err := parseID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// openNavigator creates a navigator on the --scope and enters folder.
func openNavigator(ctx context.Context, app *services.App, folder *int64) (*navigator.Navigator, error) {
	scope, err := currentScope()
	if err != nil {
		return nil, err
	}
	nav := app.NewNavigatorWithOptions(scope, cliNavigatorOptions())
	if err := nav.NavigateToID(ctx, folder); err != nil {
		return nil, err
	}
	if err := nav.Snapshot().Err; err != nil {
		return nil, err
	}
	return nav, nil
}
