package app

import (
	"context"
	"errors"
	"time"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/export"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/session"
)

// Backend is the fraud API as the dashboard uses it.
type Backend interface {
	session.API
	DetailedHealth(ctx context.Context) (*apiclient.HealthReport, error)
	BaseURL() string
}

// Application is the runtime state container. It holds the config and the
// services shared by the HTTP server and the CLI. Pass Application to the
// components that need it rather than using package-level variables.
type Application struct {
	Config   *Config
	Logger   logging.Logger
	Backend  Backend
	Sessions *session.Store
	PDF      export.Renderer

	client *apiclient.Client
	chrome *export.ChromeRenderer

	ctx    context.Context
	cancel context.CancelFunc
}

// New wires the real API client and PDF renderer from cfg.
func New(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	client, err := apiclient.New(cfg.APIConfig(), nil, logger)
	if err != nil {
		return nil, err
	}
	var pdf export.Renderer = export.Disabled{}
	var chrome *export.ChromeRenderer
	if cfg.PDFEnabled {
		chrome = export.NewChromeRenderer(cfg.ExportConfig(), logger)
		pdf = chrome
	}
	a := NewApplication(cfg, client, pdf, logger)
	a.client = client
	a.chrome = chrome
	return a, nil
}

// NewApplication assembles an Application from already-built parts, so
// tests can substitute the backend.
func NewApplication(cfg *Config, backend Backend, pdf export.Renderer, logger logging.Logger) *Application {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if pdf == nil {
		pdf = export.Disabled{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		Config:   cfg,
		Logger:   logger,
		Backend:  backend,
		Sessions: session.NewStore(backend, cfg.SessionIdle, logger),
		PDF:      pdf,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches background work: the idle-session sweeper.
func (a *Application) Start() error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application starting",
		logging.Field{Key: "api_base_url", Value: a.Backend.BaseURL()},
		logging.Field{Key: "pdf_enabled", Value: a.chrome != nil})
	every := a.Config.SessionIdle / 4
	if every < time.Second {
		every = time.Second
	}
	go a.Sessions.Run(a.ctx, every)
	return nil
}

// Shutdown stops background work, lets detached history saves finish
// within ctx and releases the transport and browser.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")
	a.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var errs []error
	if a.client != nil {
		if err := a.client.Wait(shutdownCtx); err != nil {
			a.Logger.Warn("pending history saves abandoned", logging.Err(err))
			errs = append(errs, err)
		}
		errs = append(errs, a.client.Close())
	}
	if a.chrome != nil {
		a.chrome.Close()
	}
	return errors.Join(errs...)
}
