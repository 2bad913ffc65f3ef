package ledger

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/alovak/cardledger/internal/expiry"
	"github.com/alovak/cardledger/internal/middleware"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

// App is the main application; it wires the selected backend, the service
// and the HTTP server, and is responsible for starting and stopping them.
type App struct {
	srv    *http.Server
	wg     *sync.WaitGroup
	Addr   string
	logger *slog.Logger
	config *Config
	stores *Stores
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "cardledger"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...", slog.String("backend", a.config.Backend))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stores, err := OpenStores(ctx, a.config)
	if err != nil {
		return fmt.Errorf("opening stores: %w", err)
	}
	a.stores = stores

	if a.config.ExpiryTZ != "" {
		if loc, err := time.LoadLocation(a.config.ExpiryTZ); err == nil {
			expiry.SetDefaultLocation(loc)
		} else {
			a.logger.Info("invalid EXPIRY_TZ; using default UTC", slog.String("tz", a.config.ExpiryTZ), slog.Any("err", err))
		}
	}

	svc := NewService(stores.Users, stores.Cards, a.config, a.logger)

	router := chi.NewRouter()
	router.Use(middleware.NewStructuredLogger(a.logger))

	api := NewAPI(svc)
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := stores.Ping(ctx); err != nil {
			http.Error(w, "backend not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler: router,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	a.srv.Shutdown(context.Background())

	if a.stores != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.stores.Close(ctx); err != nil {
			a.logger.Error("closing stores", "err", err)
		}
	}

	a.wg.Wait()

	a.logger.Info("app stopped")
}
