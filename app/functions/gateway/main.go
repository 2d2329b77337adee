// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-obvious/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/build"
	config "github.com/krkn-chaos/krkn-telemetry/app/config/gateway"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/browse"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/healthz"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/telemetry"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/upload"
	"github.com/krkn-chaos/krkn-telemetry/app/handlers"
	"github.com/krkn-chaos/krkn-telemetry/app/http/middleware"
	"github.com/krkn-chaos/krkn-telemetry/app/http/tlsconfig"
	"github.com/krkn-chaos/krkn-telemetry/app/logging"
	"github.com/krkn-chaos/krkn-telemetry/app/storage/minio"
	"github.com/krkn-chaos/krkn-telemetry/app/storage/sqlite"
	"github.com/krkn-chaos/krkn-telemetry/app/storage/tracker"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

func main() {
	var configFiles config.Files
	flag.Var(&configFiles, "config", "Path to the configuration file(s)")
	flag.Parse()

	settings, err := config.NewSettings(configFiles...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	log.Info().
		Str("version", build.GetVersion()).
		Str("buildTime", build.Time).
		Str("rev", build.Rev).
		Str("tag", build.Tag).
		Str("author", build.AuthorName).
		Str("copyright", build.Copyright).
		Str("authorEmail", build.AuthorEmail).
		Str("chartsRepo", build.ChartsRepo).
		Str("bucket", settings.BucketName).
		Interface("configFiles", configFiles).
		Msg("Starting telemetry gateway")

	logger, err := logging.NewLogger(
		logging.WithLevel(settings.Logging.Level),
		logging.WithSink(logging.NewFieldFilterWriter(os.Stdout, settings.Logging.FilteredFields)),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create the logger")
	}
	zerolog.DefaultContextLogger = &logger

	// print settings on debug
	if logger.GetLevel() <= zerolog.DebugLevel {
		enc, err := settings.ToYAML() //nolint:govet // shadowed err is scoped to the dump
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to encode the config")
		}
		fmt.Println(string(enc))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Panic().Interface("panic", r).Msg("application panicked, exiting")
		}
	}()

	store, err := minio.NewClient(minio.Config{
		Endpoint:        settings.Storage.Endpoint,
		Region:          settings.Storage.Region,
		AccessKeyID:     settings.Storage.AccessKeyID,
		SecretAccessKey: settings.Storage.SecretAccessKey,
		SessionToken:    settings.Storage.SessionToken,
		BucketName:      settings.BucketName,
		UseSSL:          settings.Storage.UseSSL,
		PathStyle:       settings.Storage.PathStyle,
		BufferSize:      settings.Storage.BufferSize,
		SpoolDir:        settings.Storage.SpoolDir,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create the object storage client")
	}
	if settings.BucketName == "" {
		logger.Warn().Msg("BUCKET_NAME is not set, storage requests will fail")
	} else {
		if settings.Storage.CreateBucket {
			if err = store.EnsureBucket(ctx, settings.Storage.Region); err != nil {
				logger.Fatal().Err(err).Msg("failed to ensure the bucket exists")
			}
		}
		healthz.Register("bucket", store.Ping)
	}

	ledger, closeLedger, err := newLedger(ctx, settings)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize the upload ledger")
	}
	defer closeLedger()

	uploads := upload.NewService(store, ledger, telemetry.NewValidator(settings.Upload.RequiredFields...), upload.Config{
		LinkExpiration: settings.LinkTTL(),
		MaxBodyBytes:   settings.Upload.MaxBodyBytes,
	})
	browser := browse.NewService(store, ledger, browse.Config{
		LinkExpiration: settings.LinkTTL(),
		PageSize:       settings.Listing.PageSize,
		PresignWorkers: settings.Listing.PresignWorkers,
	})

	mw := []server.Middleware{
		middleware.RequestLogger,
		middleware.LoggingMiddlewareWrapper,
		middleware.PromHTTPMiddleware,
	}

	apis := []server.API{
		handlers.NewGatewayAPI("/", uploads, browser, settings.Upload.MaxBodyBytes),
		handlers.NewHealthzAPI("/healthz", healthz.NewHealthz()),
		handlers.NewPromMetricsAPI("/metrics"),
	}
	if settings.Server.Profiling {
		apis = append(apis, handlers.NewProfilingAPI("/debug/pprof/"))
	}

	sigc := make(chan os.Signal, 1)
	defer close(sigc)
	signal.Notify(sigc, syscall.SIGHUP)
	defer signal.Stop(sigc)

	listener := server.HTTPListener()
	if settings.Server.Mode == config.ServerModeHTTPS {
		certs, err := tlsconfig.NewReloader(settings.Server.CertFile, settings.Server.KeyFile) //nolint:govet // scoped to the https branch
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load the TLS certificate")
		}
		go certs.Watch(ctx, sigc, nil)
		listener = server.TLSListener(
			settings.Server.ReadTimeout,
			settings.Server.WriteTimeout,
			settings.Server.IdleTimeout,
			func() *tls.Config { return certs.TLSConfig() },
		)
	}

	log.Ctx(ctx).Info().Msg("Starting service")
	server.New(build.Version()).
		WithAddress(fmt.Sprintf(":%d", settings.Server.Port)).
		WithMiddleware(mw...).
		WithAPIs(apis...).
		WithListener(listener).
		Run(ctx)
	log.Ctx(ctx).Info().Msg("Server stopped")
}

// newLedger opens the configured upload ledger. A nil ledger disables
// recording.
func newLedger(ctx context.Context, settings *config.Settings) (types.Ledger, func(), error) {
	noop := func() {}
	switch settings.Ledger.Backend {
	case config.LedgerNone:
		return nil, noop, nil
	case config.LedgerSQLite:
		db, err := sqlite.NewSQLiteDriver(settings.Ledger.DSN)
		if err != nil {
			return nil, noop, err
		}
		ledger, err := sqlite.NewUploadLedger(ctx, db, settings.Ledger.Limit)
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, err
		}
		healthz.Register("ledger", ledger.Ping)
		return ledger, func() {
			if err := sqlDB.Close(); err != nil {
				log.Ctx(ctx).Err(err).Msg("failed to close the upload ledger")
			}
		}, nil
	default:
		return tracker.NewMemoryLedger(settings.Ledger.Limit), noop, nil
	}
}
