// Package app wires configuration into stores, services and HTTP engines.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"empire-mine/internal/core/auth"
	"empire-mine/internal/core/cache"
	"empire-mine/internal/core/config"
	"empire-mine/internal/core/database"
	"empire-mine/internal/directory"
	"empire-mine/internal/domain"
	"empire-mine/internal/repo"
	"empire-mine/internal/service"
	"empire-mine/internal/transport/http/handler"
	"empire-mine/internal/transport/http/router"
)

type App struct {
	Cfg *config.Config
	Log *zap.Logger

	Dir        *directory.Directory
	Accounts   *service.AccountService
	Activation *service.ActivationService
	Ledger     *service.LedgerService
	JWT        *auth.JWTer

	db     *gorm.DB
	rdb    *redis.Client
	codes  *cache.Cache
	closer []func()
}

// New opens the configured store, loads the user directory and builds the services.
func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: l, JWT: auth.NewJWTer(cfg.JWT)}

	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closer = append(a.closer, func() { _ = a.rdb.Close() })
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Dir = directory.New(store, directory.WithLogger(l.Named("directory")))
	if err := a.Dir.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load user directory: %w", err)
	}

	svcLog := service.WithLogger(l.Named("service"))
	a.Accounts = service.NewAccountService(a.Dir, svcLog)
	a.Activation = service.NewActivationService(a.Dir, svcLog)
	a.Ledger = service.NewLedgerService(a.Dir, svcLog)

	if err := a.seedAdminPassword(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if a.rdb != nil && cfg.Redis.CodeCacheTTLSec > 0 {
		a.codes = cache.NewWithClient(a.rdb, cfg.Store.KeyPrefix+"cache:")
	}
	l.Info("user directory ready",
		zap.String("store", cfg.Store.Driver),
		zap.Int("users", len(a.Dir.All(ctx))),
		zap.Bool("code_cache", a.codes != nil),
	)
	return a, nil
}

// seedAdminPassword gives the bootstrap admin the configured password once.
// An admin that already has a password keeps it.
func (a *App) seedAdminPassword(ctx context.Context) error {
	if a.Cfg.Admin.Password == "" {
		return nil
	}
	admin, ok := a.Dir.GetByID(ctx, domain.BootstrapAdminID)
	if !ok || admin.PasswordHash != "" {
		return nil
	}
	if err := a.Accounts.SetPassword(ctx, admin.ID, a.Cfg.Admin.Password); err != nil {
		return fmt.Errorf("seed admin password: %w", err)
	}
	a.Log.Info("bootstrap admin password set", zap.String("user_id", admin.ID))
	return nil
}

func (a *App) openStore(ctx context.Context) (domain.Store, error) {
	switch a.Cfg.Store.Driver {
	case "memory":
		a.Log.Warn("memory store selected: users are lost on exit")
		return repo.NewMemoryStore(), nil

	case "redis":
		if a.rdb == nil {
			return nil, fmt.Errorf("store.driver redis needs redis.addr")
		}
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return repo.NewRedisStore(a.rdb, a.Cfg.Store.KeyPrefix), nil

	case "gorm", "":
		db, err := database.NewGorm(database.Opts{
			Driver:             a.Cfg.DB.Driver,
			DSN:                a.Cfg.DB.DSN,
			Username:           a.Cfg.DB.Username,
			Password:           a.Cfg.DB.Password,
			MaxOpenConns:       a.Cfg.DB.MaxOpenConns,
			MaxIdleConns:       a.Cfg.DB.MaxIdleConns,
			ConnMaxLifetimeMin: a.Cfg.DB.ConnMaxLifetimeMin,
			LogLevel:           a.Cfg.DB.LogLevel,
		})
		if err != nil {
			return nil, err
		}
		a.db = db
		a.closer = append(a.closer, func() { _ = database.Close(db) })
		a.Log.Info("database connected", zap.String("driver", a.Cfg.DB.Driver))

		st := repo.NewGormStore(db)
		if a.Cfg.DB.AutoMigrate {
			if err := st.AutoMigrate(); err != nil {
				return nil, fmt.Errorf("automigrate: %w", err)
			}
			a.Log.Info("automigrate done")
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unknown store.driver %q", a.Cfg.Store.Driver)
	}
}

// Health pings whichever backends are in use.
func (a *App) Health(c *gin.Context) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if a.db != nil {
		if err := database.Ping(ctx, a.db); err != nil {
			return fmt.Errorf("db: %w", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Registry returns the HTTP modules backed by this app.
func (a *App) Registry() *router.Registry {
	accounts := handler.NewAccountHandler(a.Accounts, a.Activation, a.JWT, a.Log.Named("http")).
		WithAuthRateLimit(a.Cfg.App.HTTP.AuthRPS, a.Cfg.App.HTTP.AuthBurst)
	if a.codes != nil {
		accounts.WithCodeCache(a.codes, time.Duration(a.Cfg.Redis.CodeCacheTTLSec)*time.Second)
	}
	return router.NewRegistry(accounts, handler.NewAdminHandler(a.Accounts, a.Ledger))
}

func (a *App) APIEngine(reg *router.Registry) *gin.Engine {
	return router.NewAPIEngine(a.Log, a.JWT, reg, a.Health)
}

func (a *App) AdminEngine(reg *router.Registry) *gin.Engine {
	return router.NewAdminEngine(a.Log, a.JWT, reg, a.Health)
}

func (a *App) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
	a.closer = nil
}
