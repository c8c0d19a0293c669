package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/zento"
	"github.com/goliatone/zento/internal/config"
	"github.com/goliatone/zento/ledger"
	"github.com/goliatone/zento/signin"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config *config.Config
	bunDB  *bun.DB
	repo   zento.RepositoryManager
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("zento"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}
	defer app.bunDB.Close()

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(cfg.Server.Addr)

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.config.Database

	var (
		db      *sql.DB
		dialect schema.Dialect
		name    string
		err     error
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		db, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			return err
		}
		dialect = pgdialect.New()
		name = zento.DialectPostgres
	default:
		db, err = sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return err
		}
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			return err
		}
		dialect = sqlitedialect.New()
		name = zento.DialectSQLite
	}

	for _, model := range zento.Models() {
		persistence.RegisterModel(model)
	}

	client, err := persistence.New(cfg, db, dialect)
	if err != nil {
		return err
	}
	client.SetLogger(app.GetLogger("persistence"))

	pingCtx, cancel := context.WithTimeout(ctx, cfg.GetPingTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	if err := zento.Migrate(ctx, db, name); err != nil {
		return err
	}

	bunDB := client.DB()

	repo := zento.NewRepositoryManager(bunDB,
		zento.WithSessionLogger(app.GetLogger("sessions")),
	)
	if err := repo.Validate(); err != nil {
		return err
	}

	if cfg.PurgeOnStart {
		n, err := repo.Sessions().PurgeExpired(ctx, time.Now())
		if err != nil {
			return err
		}
		app.GetLogger("sessions").Info("purged expired anonymous sessions", "count", n)
	}

	app.bunDB = bunDB
	app.repo = repo

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.config

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: true,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	activity := zento.ActivitySinkFunc(func(ctx context.Context, event zento.ActivityEvent) error {
		app.GetLogger("activity").Info(string(event.EventType),
			"guest", event.GuestID,
			"account", event.AccountID,
			"metadata", print.MaybePrettyJSON(event.Metadata),
		)
		return nil
	})

	resolver := zento.NewResolver(app.repo,
		zento.WithResolverLogger(app.GetLogger("resolver")),
		zento.WithResolverActivitySink(activity),
		zento.WithGuestTTL(cfg.Guest.TTL),
	)

	gate := zento.NewGuestGate(resolver,
		zento.WithGuestCookie(zento.GuestCookieConfig{
			Name:   cfg.Guest.CookieName,
			Secure: cfg.Guest.Secure,
			MaxAge: cfg.Guest.TTL,
		}),
		zento.WithGuestGateLogger(app.GetLogger("gate")),
	)

	isolation := cfg.Guest.IsolationLevel()
	if cfg.Database.Driver == config.DriverSQLite {
		isolation = sql.LevelDefault
	}

	engine := zento.NewMergeEngine(app.repo,
		zento.WithMergeLogger(app.GetLogger("merge")),
		zento.WithMergeActivitySink(activity),
		zento.WithMergeIsolation(isolation),
	)

	confirmation := zento.NewMergeConfirmation(app.repo, engine,
		zento.WithConfirmationLogger(app.GetLogger("merge:confirm")),
		zento.WithConfirmationActivitySink(activity),
	)

	merger := zento.NewSignInMerger(gate, engine, confirmation,
		zento.WithMergePolicy(zento.MergePolicy(cfg.Guest.MergePolicy)),
		zento.WithSignInMergerLogger(app.GetLogger("merge:signin")),
	)

	tokens := signin.NewTokenService(
		[]byte(cfg.Signin.SigningKey),
		cfg.Signin.TokenTTL(),
		cfg.Signin.Issuer,
		app.GetLogger("signin:tokens"),
	)

	service := signin.NewService(app.repo, tokens,
		signin.WithServiceLogger(app.GetLogger("signin")),
		signin.WithHashidIDs(cfg.Signin.HashidIDs),
	)

	auth := signin.NewController(
		signin.WithService(service),
		signin.WithTokens(tokens),
		signin.WithRepo(app.repo),
		signin.WithLogger(app.GetLogger("signin:http")),
		signin.WithCookie(cfg.Signin.CookieName, cfg.Guest.Secure),
		signin.WithListener(merger),
	)

	srv.Router().Use(auth.Middleware())
	srv.Router().Use(gate.OwnerMiddleware(zento.ReadAccess))

	signin.MountRoutes(srv.Router(), auth)

	zento.RegisterMergeRoutes(srv.Router(),
		zento.WithMergeControllerGate(gate),
		zento.WithMergeControllerFlow(confirmation),
		zento.WithMergeControllerLogger(app.GetLogger("merge:http")),
	)

	ledger.RegisterRoutes(srv.Router(),
		ledger.WithGate(gate),
		ledger.WithService(ledger.NewService(app.repo, ledger.WithServiceLogger(app.GetLogger("ledger")))),
		ledger.WithLogger(app.GetLogger("ledger:http")),
	)

	app.srv = srv

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
