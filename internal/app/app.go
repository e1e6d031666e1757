package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/tasktracker/internal/config"
	"github.com/Skotchmaster/tasktracker/internal/es"
	"github.com/Skotchmaster/tasktracker/internal/hash"
	"github.com/Skotchmaster/tasktracker/internal/httpserver"
	"github.com/Skotchmaster/tasktracker/internal/middleware/csrf"
	"github.com/Skotchmaster/tasktracker/internal/mykafka"
	"github.com/Skotchmaster/tasktracker/internal/repo"
	"github.com/Skotchmaster/tasktracker/internal/service"
	"github.com/Skotchmaster/tasktracker/pkg/db"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
	"github.com/Skotchmaster/tasktracker/pkg/tokens"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Cfg  config.Config
	Log  *slog.Logger
	DB   *gorm.DB
	Repo *repo.GormRepo

	Auth  *service.AuthService
	Users *service.UserService
	Tasks *service.TaskService

	Echo *echo.Echo

	producer *mykafka.Producer
}

// New opens every dependency and wires the services. Kafka and
// Elasticsearch are optional and only used when configured.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	ctx = logging.IntoContext(ctx, log)

	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: log, DB: gdb, Repo: repo.New(gdb)}

	if err := a.Repo.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var events service.Publisher = service.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := mykafka.NewProducer(cfg.KafkaBrokers, log)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		tctx, cancel := context.WithTimeout(ctx, mykafka.EnsureTimeout)
		err = mykafka.EnsureTopics(tctx, cfg.KafkaBrokers[0], service.TopicUserEvents, service.TopicTaskEvents)
		cancel()
		if err != nil {
			log.Warn("kafka_topics_unavailable", "error", err)
		}
		a.producer = p
		events = p
	}

	var index service.TaskIndex
	if cfg.ESURL != "" {
		client, err := es.NewClient(ctx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		idx := es.NewTaskIndex(client, cfg.ESIndex)
		if err := idx.EnsureIndex(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		index = idx
	}

	hasher := hash.NewBcrypt(cfg.BcryptCost)
	issuer := tokens.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)

	a.Auth = &service.AuthService{Users: a.Repo, Ledger: a.Repo, Tokens: issuer, Hasher: hasher, Events: events}
	a.Users = &service.UserService{Repo: a.Repo, Hasher: hasher, Events: events, Index: index}
	a.Tasks = &service.TaskService{Repo: a.Repo, Index: index, Events: events}

	deps := &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: a.Auth, CookieSecure: cfg.CookieSecure},
		UserHandler: &httpserver.UserHTTP{Auth: a.Auth, Svc: a.Users},
		TaskHandler: &httpserver.TaskHTTP{Svc: a.Tasks},
		Authn:       &httpserver.AuthMiddleware{Auth: a.Auth},
		Ready:       func(ctx context.Context) error { return db.Ping(ctx, a.DB) },
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.CSRFEnabled {
		c := csrf.DefaultConfig()
		c.Secure = cfg.CookieSecure
		c.SkipPaths = []string{"/login"}
		c.Skipper = csrf.BearerSkipper
		deps.CSRF = &c
	}
	a.Echo = httpserver.New(log, deps)

	return a, nil
}

func (a *App) Bootstrap(ctx context.Context) error {
	ctx = logging.IntoContext(ctx, a.Log)
	_, err := a.Auth.BootstrapAdmin(ctx, a.Cfg.Admin.Username, a.Cfg.Admin.Email, a.Cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Bootstrap(ctx); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", a.Cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Cfg.Addr(), err)
	}

	srv := &http.Server{
		Handler:      a.Echo,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	pruneDone := make(chan struct{})
	go func() {
		defer close(pruneDone)
		a.pruneLoop(pruneCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http_server_started", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	a.Log.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Log.Error("server_shutdown_error", "error", err)
	}

	stopPrune()
	<-pruneDone

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

func (a *App) pruneLoop(ctx context.Context) {
	if a.Cfg.PruneInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.Cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.PruneOnce(ctx)
		}
	}
}

func (a *App) PruneOnce(ctx context.Context) (int64, error) {
	n, err := a.Auth.PruneRevoked(ctx)
	if err != nil {
		a.Log.Error("revoked_prune_failed", "error", err)
		return 0, err
	}
	a.Log.Info("revoked_pruned", "deleted", n)
	return n, nil
}

func (a *App) Close() error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if a.DB != nil {
		if err := db.Close(a.DB); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}
