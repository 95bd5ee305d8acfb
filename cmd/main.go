package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/ratelimit"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/reflection"

	grpcctx "github.com/dtroode/townsquare-auth/internal/api/grpc/context"
	"github.com/dtroode/townsquare-auth/internal/api/grpc/middleware"
	"github.com/dtroode/townsquare-auth/internal/api/grpc/router"
	grpcServer "github.com/dtroode/townsquare-auth/internal/api/grpc/server"
	"github.com/dtroode/townsquare-auth/internal/config"
	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
	"github.com/dtroode/townsquare-auth/internal/notify"
	"github.com/dtroode/townsquare-auth/internal/repository/postgres"
	"github.com/dtroode/townsquare-auth/internal/repository/sqlite"
	"github.com/dtroode/townsquare-auth/internal/server"
	"github.com/dtroode/townsquare-auth/internal/service"
	storage "github.com/dtroode/townsquare-auth/internal/storage/minio"
	"github.com/dtroode/townsquare-auth/internal/telemetry"
	"github.com/dtroode/townsquare-auth/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracing", "error", err)
	}

	users, ledger, db, err := openStores(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err, "driver", cfg.Database.Driver)
	}
	defer db.Close()

	archive, err := openArchive(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialize ledger archive", "error", err)
	}

	var mailer notify.Mailer
	if cfg.Mail.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		})
	} else {
		logger.Warn("MAIL_SMTP_HOST is empty, outgoing mail is only logged")
		mailer = notify.NewLogMailer(logger.With("component", "mailer"))
	}
	dispatcher := notify.NewDispatcher(mailer, notify.DispatcherConfig{
		ResetURL:  cfg.Mail.ResetURL,
		VerifyURL: cfg.Mail.VerifyURL,
		QueueSize: cfg.Mail.QueueSize,
		Workers:   cfg.Mail.Workers,
	}, logger.With("component", "notify"))

	codec := token.NewJWT(cfg.JWT.Secret, token.WithIssuer(cfg.JWT.Issuer))
	ttl := service.TokenTTL{
		Access:        cfg.JWT.AccessTTL,
		Refresh:       cfg.JWT.RefreshTTL,
		PasswordReset: cfg.JWT.PasswordResetTTL,
		EmailVerify:   cfg.JWT.EmailVerifyTTL,
	}

	credentialService := service.NewCredentials(users, cfg.Password.BcryptCost)
	issuer := service.NewIssuer(codec, ledger, ttl, logger)
	authenticator := service.NewAuthenticator(codec, ledger, users, logger)
	revocation := service.NewRevocation(codec, ledger, issuer, logger)
	accounts := service.NewAuth(users, credentialService, issuer, authenticator, revocation, dispatcher, logger)
	reset := service.NewPasswordReset(credentialService, issuer, authenticator, revocation, dispatcher, logger)
	pruner := service.NewPruner(ledger, archive, service.PrunerConfig{
		Interval:  cfg.Ledger.PruneInterval,
		Grace:     cfg.Ledger.PruneGrace,
		BatchSize: cfg.Ledger.PruneBatch,
	}, logger.With("component", "pruner"))

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewPeerLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, cfg.RateLimit.Idle)
	}

	r := router.New(accounts, reset, revocation, authenticator, grpcctx.NewManager(), limiter, logger)
	s := r.Register()
	reflection.Register(s)

	grpcSrv := grpcServer.NewGRPCServer(s, fmt.Sprintf(":%s", cfg.GRPC.Port), r.Shutdown)
	sl := server.NewSecurityLayer(tlsFiles(cfg.GRPC))

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workers errgroup.Group
	workers.Go(func() error { return dispatcher.Run(workersCtx) })
	workers.Go(func() error { return pruner.Run(workersCtx) })

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		err := s.Start(sl)
		if err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(grpcSrv)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GRPC.ShutdownTimeout)
	defer shutdownCancel()

	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", grpcSrv.Address())
	}
	wg.Wait()

	stopWorkers()
	if err := workers.Wait(); err != nil {
		logger.Error("background worker failed", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

// openStores connects the configured database driver and returns the user
// store and the revocation ledger sharing one handle.
func openStores(ctx context.Context, cfg config.Database) (model.UserStore, model.Ledger, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.QueryTimeout)
		if err != nil {
			return nil, nil, nil, err
		}
		return sqlite.NewUserRepository(store), sqlite.NewLedgerRepository(store), store, nil
	default:
		db, err := postgres.NewConection(ctx, cfg.DSN, cfg.QueryTimeout)
		if err != nil {
			return nil, nil, nil, err
		}
		return postgres.NewUserRepository(db), postgres.NewLedgerRepository(db), db, nil
	}
}

// openArchive returns nil when the archive is disabled.
func openArchive(ctx context.Context, cfg config.Storage) (model.LedgerArchive, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	archive, err := storage.NewArchive(ctx, client, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	return archive, nil
}

func tlsFiles(cfg config.GRPC) (string, string) {
	if !cfg.EnableHTTPS {
		return "", ""
	}
	return cfg.CertFileName, cfg.PrivateKeyFileName
}
