package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/JustJay7/court-case-aggregator/internal/browser"
	"github.com/JustJay7/court-case-aggregator/internal/cache"
	"github.com/JustJay7/court-case-aggregator/internal/captcha"
	"github.com/JustJay7/court-case-aggregator/internal/config"
	"github.com/JustJay7/court-case-aggregator/internal/database"
	"github.com/JustJay7/court-case-aggregator/internal/metrics"
	"github.com/JustJay7/court-case-aggregator/internal/pipeline"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/portal/cnr"
	"github.com/JustJay7/court-case-aggregator/internal/portal/consumer"
	"github.com/JustJay7/court-case-aggregator/internal/portal/districtcourt"
	"github.com/JustJay7/court-case-aggregator/internal/portal/highcourt"
	"github.com/JustJay7/court-case-aggregator/internal/portal/supremecourt"
	"github.com/JustJay7/court-case-aggregator/internal/portal/tribunal"
	"github.com/JustJay7/court-case-aggregator/internal/storage/docstore"
	"github.com/JustJay7/court-case-aggregator/internal/storage/objectstore"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
)

// app is the wired service graph shared by all commands.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	pipeline *pipeline.Service
	cache    *cache.CaseCache
	queries  *database.QueryLogs
	metrics  *metrics.Metrics
	closers  []io.Closer
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Error("Failed to release resource", "error", err)
		}
	}
}

func build(cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.queries = database.NewQueryLogs(db)

	store, err := openDocumentStore(cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return store.Close(ctx)
	}))
	a.cache = cache.New(store, cfg.CollectionPrefix)

	var objects archive.ObjectStore
	if cfg.BucketName != "" {
		s3, err := objectstore.New(objectstore.Config{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			UseSSL:        cfg.S3UseSSL,
			Bucket:        cfg.BucketName,
			Region:        cfg.RegionName,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		objects = s3
	} else {
		log.Warn("BUCKET_NAME not set, order documents will not be archived")
	}
	archiver := archive.New(objects, archive.Options{
		Timeout: cfg.ArchiveTimeout,
		Observe: a.metrics.OrderArchived,
	}, log)

	registry, err := a.portals(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline = pipeline.New(pipeline.Options{
		Registry: registry,
		Opener: transport.NewOpener(transport.Options{
			UserAgent:     cfg.UserAgent,
			Timeout:       cfg.HTTPTimeout,
			RatePerSecond: cfg.PortalRateLimit,
		}, log),
		Cache:         a.cache,
		Archiver:      archiver,
		QueryLog:      a.queries,
		Metrics:       a.metrics,
		MaxConcurrent: cfg.MaxConcurrentScrapes,
		Log:           log,
	})
	return a, nil
}

func openDocumentStore(cfg *config.Config, log *logger.Logger) (docstore.Store, error) {
	if cfg.DocumentStore == "memory" {
		log.Warn("Using in-memory document store, cached cases are lost on restart")
		return docstore.NewMemory(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		log.Warn("Document store not reachable yet", "error", err)
	}
	return store, nil
}

// portals registers every adapter the configuration allows. CAPTCHA-gated
// portals need a solver; cnr additionally needs the browser.
func (a *app) portals(cfg *config.Config, log *logger.Logger) (*portal.Registry, error) {
	adapters := []portal.Adapter{
		districtcourt.New(cfg.DistrictCourtBaseURL, log),
		consumer.New(cfg.ConsumerBaseURL, log),
		supremecourt.New(cfg.SCIBaseURL, log),
		tribunal.New(cfg.NCLTBaseURL, log),
	}

	solver, err := captcha.Build(captcha.Settings{
		Names:          cfg.CaptchaSolvers,
		TesseractPath:  cfg.TesseractPath,
		TwoCaptchaKey:  cfg.TwoCaptchaKey,
		AntiCaptchaKey: cfg.AntiCaptchaKey,
		Poll:           captcha.PollOptions{Interval: cfg.CaptchaPollInterval},
	}, log)
	if err != nil {
		log.Warn("No CAPTCHA solver, high court and CNR lookups disabled", "error", err)
		return portal.NewRegistry(adapters...), nil
	}

	for _, v := range []highcourt.Variant{highcourt.HC, highcourt.HC2} {
		adapters = append(adapters, highcourt.New(v, highcourt.Options{
			BaseURL:     cfg.HighCourtBaseURL,
			Solver:      solver,
			MaxAttempts: cfg.CaptchaMaxAttempts,
			Log:         log,
		}))
	}

	if cfg.BrowserEnabled {
		b, err := browser.Launch(browser.Options{
			Headless:  cfg.HeadlessMode,
			Bin:       cfg.BrowserPath,
			UserAgent: cfg.UserAgent,
			Debug:     cfg.LogLevel == "debug" && !cfg.HeadlessMode,
		}, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b)
		adapters = append(adapters, cnr.New(cnr.Options{
			BaseURL:     cfg.DistrictCourtBaseURL,
			Pages:       b,
			Solver:      solver,
			MaxAttempts: cfg.CaptchaMaxAttempts,
			Log:         log,
		}))
	}

	return portal.NewRegistry(adapters...), nil
}
