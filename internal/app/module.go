package app

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/acrispim/mdchat/internal/chat"
	"github.com/acrispim/mdchat/internal/config"
	"github.com/acrispim/mdchat/internal/logging"
	"github.com/acrispim/mdchat/internal/markup"
	"github.com/acrispim/mdchat/internal/profile"
	"github.com/acrispim/mdchat/internal/render"
	"github.com/acrispim/mdchat/internal/store"
	"github.com/acrispim/mdchat/internal/stream"
	"github.com/acrispim/mdchat/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	ConfigPath string // optional override for testing; empty = use default
}

// Module returns the fx module for the messaging core, composing all
// providers and lifecycle hooks. The host application must supply a
// transport.Transport implementation alongside it.
func Module(p Params) fx.Option {
	return fx.Module("core",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideLock,
			provideStore,
			provideStream,
			provideRenderer,
			provideCache,
			provideService,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.ConfigPath(p.Profile)
	}
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideLock(p Params, logger *zap.Logger) (*profile.Lock, error) {
	if err := profile.ValidateName(p.Profile); err != nil {
		return nil, err
	}
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := profile.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, cfg *config.Config, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	if cfg.DataDir != "" {
		dbPath = filepath.Join(cfg.DataDir, "messages.db")
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	updated, err := db.Backfill(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if updated > 0 {
		logger.Info("legacy rows backfilled", zap.Int("count", updated))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideStream() *stream.Stream {
	return stream.New()
}

func provideRenderer() *markup.Renderer {
	return markup.NewRenderer()
}

func provideCache(cfg *config.Config, renderer *markup.Renderer) (*render.Cache, error) {
	return render.NewCache(renderer, cfg.RenderCacheSize)
}

func provideService(db *store.DB, tp transport.Transport, st *stream.Stream, cache *render.Cache, renderer *markup.Renderer, cfg *config.Config, logger *zap.Logger) *chat.Service {
	return chat.New(db, tp, st, cache, renderer, cfg.ConnectTimeout(), logger)
}

func registerLifecycle(lc fx.Lifecycle, svc *chat.Service, tp transport.Transport, db *store.DB, lk *profile.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Route inbound transport callbacks into the service.
			svc.Attach(tp)
			logger.Info("messaging core started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("messaging core stopped")
			return nil
		},
	})
}
