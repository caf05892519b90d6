package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/hebocon-control/internal/backup"
	"github.com/DoyleJ11/hebocon-control/internal/config"
	"github.com/DoyleJ11/hebocon-control/internal/httpapi"
	"github.com/DoyleJ11/hebocon-control/internal/store"
	"github.com/DoyleJ11/hebocon-control/internal/tournament"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	log, err := newLogger(cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()
	log.Info("store ready", zap.String("kind", string(cfg.Store)))

	// the session outlives the signal so the final backup can still read it
	sess, err := tournament.Open(context.Background(), st, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	job, err := newBackupJob(ctx, cfg, sess, log)
	if err != nil {
		return err
	}
	if err := job.Start(cfg.BackupInterval); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(httpapi.Deps{Session: sess, Log: log, AllowedOrigins: cfg.AllowedOrigins}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Combine(srv.Shutdown(sctx), job.Stop(sctx))
	})
	return g.Wait()
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StorePostgres:
		return store.OpenPostgres(cfg.DatabaseURL)
	default:
		return store.NewFileStore(cfg.DataFile), nil
	}
}

func newBackupJob(ctx context.Context, cfg config.Config, sess *tournament.Session, log *zap.Logger) (*backup.Job, error) {
	var sinks []backup.Sink
	if cfg.BackupDir != "" {
		sinks = append(sinks, backup.DirSink{Dir: cfg.BackupDir})
	}
	if cfg.S3Bucket != "" {
		s3, err := backup.NewS3Sink(ctx, backup.S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3)
	}
	return backup.New(sess, log, sinks...), nil
}
