package services

import (
	"fmt"
	"sync"

	"github.com/capiweb/capishare/internal/api"
	"github.com/capiweb/capishare/internal/assets"
	"github.com/capiweb/capishare/internal/config"
	"github.com/capiweb/capishare/internal/constants"
	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/logging"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/navigator"
	"github.com/capiweb/capishare/internal/transfer"
)

// App owns one instance of every service for the life of the process:
// the API client, the event bus, the transfer coordinators and the
// thumbnail loader. Navigators are created per view and share them.
type App struct {
	config    *config.Config
	client    *api.Client
	eventBus  *events.EventBus
	logger    *logging.Logger
	loader    *assets.Loader
	transfers *transfer.Manager

	mu     sync.Mutex
	closed bool
}

var _ navigator.Downloader = (*App)(nil)

// NewApp builds the API client from cfg and wires the services around it.
func NewApp(cfg *config.Config, logger *logging.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	client, err := api.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return NewAppWithClient(cfg, client, events.NewEventBus(constants.EventBusDefaultBuffer), logger), nil
}

// NewAppWithClient wires the services around an existing client and bus.
func NewAppWithClient(cfg *config.Config, client *api.Client, eventBus *events.EventBus, logger *logging.Logger) *App {
	logger = logging.OrNop(logger)

	opts := transfer.Options{AutoHide: cfg.AutoHideDelay()}
	transfers := transfer.NewManager(
		NewUploadRunner(client, logger.Named("upload")),
		NewDownloadRunner(client, logger.Named("download")),
		eventBus,
		logger.Named("transfer"),
		opts,
	)

	loader := assets.NewLoader(assets.Options{
		MaxConcurrent: cfg.ThumbMaxConcurrent,
		MinSpacing:    cfg.ThumbMinSpacing(),
		RetryDelay:    cfg.ThumbRetryDelay(),
		FetchTimeout:  cfg.ThumbFetchTimeout(),
	}, logger.Named("assets"))

	return &App{
		config:    cfg,
		client:    client,
		eventBus:  eventBus,
		logger:    logger,
		loader:    loader,
		transfers: transfers,
	}
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.config }

// Client returns the shared API client.
func (a *App) Client() *api.Client { return a.client }

// EventBus returns the shared event bus.
func (a *App) EventBus() *events.EventBus { return a.eventBus }

// Logger returns the root logger.
func (a *App) Logger() *logging.Logger { return a.logger }

// Loader returns the process-wide thumbnail loader.
func (a *App) Loader() *assets.Loader { return a.loader }

// Transfers returns the upload and download coordinators.
func (a *App) Transfers() *transfer.Manager { return a.transfers }

// NewNavigator creates a navigator for scope sharing the App's client and bus.
func (a *App) NewNavigator(scope models.Scope) *navigator.Navigator {
	return a.NewNavigatorWithOptions(scope, navigator.DefaultOptions())
}

// NewNavigatorWithOptions is NewNavigator with explicit timing.
func (a *App) NewNavigatorWithOptions(scope models.Scope, opts navigator.Options) *navigator.Navigator {
	return navigator.New(a.client, scope, a.eventBus, a.logger.Named("navigator"), opts)
}

func (a *App) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Close cancels outstanding transfers and closes the event bus.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.transfers.Close()
	a.eventBus.Close()
}
