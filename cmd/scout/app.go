package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/btouchard/scout/internal/config"
	gdrive "github.com/btouchard/scout/internal/drive"
	"github.com/btouchard/scout/internal/notify"
	"github.com/btouchard/scout/internal/providers/catalog"
	driveprovider "github.com/btouchard/scout/internal/providers/drive"
	"github.com/btouchard/scout/internal/providers/notes"
	"github.com/btouchard/scout/internal/search"
	"github.com/btouchard/scout/internal/store"
)

// app wires the store, providers and engine shared by serve and the
// one-shot commands.
type app struct {
	cfg    *config.Config
	store  *store.SQLiteStore
	runner *search.Runner
	engine *search.Engine
	hub    *notify.Hub

	notes         *notes.Index
	drive         *gdrive.Client
	driveProvider *driveprovider.Provider

	stopEngine context.CancelFunc
	engineDone chan struct{}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := store.NewSQLiteStore(config.ExpandHome(cfg.Database.Path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	slog.Info("database opened", "path", cfg.Database.Path)

	a := &app{
		cfg:    cfg,
		store:  db,
		runner: search.NewRunner(ctx, cfg.Search.MaxWorkers, cfg.Search.Timeout),
		hub:    notify.NewHub(),
	}

	providers := []search.Provider{
		catalog.New(db, a.runner, cfg.Search.MaxResults, cfg.Search.EventBuffer),
	}

	if len(cfg.Search.NotesDirs) > 0 {
		ix, err := notes.NewIndex(cfg.Search.MaxResults)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if _, err := ix.LoadDirs(ctx, cfg.Search.NotesDirs); err != nil {
			_ = ix.Close()
			_ = db.Close()
			return nil, err
		}
		a.notes = ix
		providers = append(providers, notes.New(ix, a.runner, cfg.Search.EventBuffer))
	}

	if cfg.Drive.Enabled {
		a.drive = newDriveClient(cfg, db)
		a.driveProvider = driveprovider.New(ctx, a.drive, cfg.Search.Timeout, cfg.Search.EventBuffer)
		providers = append(providers, a.driveProvider)
	}

	engine, err := search.NewEngine(search.EngineConfig{
		CacheSize:  cfg.Search.CacheSize,
		CacheTTL:   cfg.Search.CacheTTL,
		MaxResults: cfg.Search.MaxResults,
	}, providers...)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	engine.SetNotifyFunc(notify.SearchNotifyFunc(a.hub))
	a.engine = engine

	engineCtx, stop := context.WithCancel(context.Background())
	a.stopEngine = stop
	a.engineDone = make(chan struct{})
	go func() {
		defer close(a.engineDone)
		if err := engine.Run(engineCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("search engine stopped", "error", err)
		}
	}()

	slog.Info("search engine started", "providers", len(providers))
	return a, nil
}

func newDriveClient(cfg *config.Config, tokens gdrive.TokenStore) *gdrive.Client {
	return gdrive.NewClient(gdrive.Config{
		APIURL:         cfg.Drive.APIURL,
		TokenURL:       cfg.Drive.TokenURL,
		ClientID:       cfg.Drive.ClientID,
		ClientSecret:   cfg.Drive.ClientSecret,
		PageSize:       cfg.Drive.PageSize,
		MaxPages:       cfg.Drive.MaxPages,
		RequestTimeout: cfg.Drive.RequestTimeout,
	}, &http.Client{}, tokens)
}

// connectDrive exchanges the configured or stored refresh token. It waits
// for the exchange and reports the outcome on the hub.
func (a *app) connectDrive(ctx context.Context) error {
	if a.drive == nil {
		return nil
	}
	resp := a.drive.Connect(ctx, a.cfg.Drive.RefreshToken)
	err := resp.Wait(ctx)
	switch {
	case err == nil:
		a.engine.PurgeCache()
		a.hub.Notify(notify.Event{Type: notify.DriveConnected, Message: "drive connected"})
	case errors.Is(err, gdrive.ErrNoRefreshToken):
		slog.Info("drive not connected, no refresh token configured or stored")
	default:
		a.hub.Notify(notify.Event{Type: notify.DriveConnectFailed, Message: err.Error()})
	}
	return err
}

// close waits for in-flight work, then stops the engine and releases
// resources. Searches drain before the engine stops reading events.
func (a *app) close() {
	a.runner.Wait()
	if a.driveProvider != nil {
		a.driveProvider.Wait()
	}
	if a.drive != nil {
		a.drive.Wait()
	}
	a.stopEngine()
	<-a.engineDone
	a.closeResources()
}

func (a *app) closeResources() {
	if a.notes != nil {
		_ = a.notes.Close()
	}
	_ = a.store.Close()
}
