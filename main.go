package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/dto"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/cache"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/clients/scraper"
	youtubeclient "github.com/Methodus-dev/methodus-shorts-planner/infrastructure/clients/youtube"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/clients/ytdlp"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/configuration"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/filecsv"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/metrics"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/persistence"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/pubsub"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/realtime"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/servicebus"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/utils"
	httpHandler "github.com/Methodus-dev/methodus-shorts-planner/interfaces/http"
	"github.com/Methodus-dev/methodus-shorts-planner/server"
	"github.com/Methodus-dev/methodus-shorts-planner/usecase"
)

var httpServer *http.Server

func recoverPanic(code *int) {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
		*code = 2
	}
}

type cliFlags struct {
	refreshOnce     bool
	force           bool
	issueAdminToken string
	tokenTTL        time.Duration
	exportPath      string
}

func parseFlags() cliFlags {
	var f cliFlags
	pflag.BoolVar(&f.refreshOnce, "refresh-once", false, "run one refresh, print the result and exit")
	pflag.BoolVar(&f.force, "force", false, "with --refresh-once, refresh even when the cache is fresh")
	pflag.StringVar(&f.issueAdminToken, "issue-admin-token", "", "print an admin token for the given subject and exit")
	pflag.DurationVar(&f.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of an issued admin token")
	pflag.StringVar(&f.exportPath, "export", "", "write the cached trends as CSV to this path and exit")
	pflag.String("refresh.mode", "failover", "failover or merge")
	pflag.StringSlice("refresh.adapters", []string{"api", "ytdlp", "scraper"}, "adapters in priority order")
	pflag.String("store.backend", "file", "primary snapshot store: file, postgres, mssql or redis")
	pflag.Int("app.port", 10001, "http port")
	pflag.Parse()
	return f
}

func main() {
	os.Exit(run())
}

// run wires the application and returns the process exit code. Deferred closers run before it returns.
func run() (code int) {
	defer recoverPanic(&code)
	flags := parseFlags()
	if err := configuration.BindFlags(pflag.CommandLine); err != nil {
		logger.GetLogger().WithField("error", err).Error("Unable to bind flags")
		return 2
	}
	if err := configuration.Validate(&configuration.C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Configuration rejected")
		return 2
	}
	app := configuration.C.App

	if flags.issueAdminToken != "" {
		token, err := utils.GenerateAdminToken(flags.issueAdminToken, app.SecretKey, flags.tokenTTL)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Unable to issue admin token")
			return 1
		}
		fmt.Println(token)
		return 0
	}

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	store, storeClosers, err := InitiateSnapshotStore(ctx)
	closers = append(closers, storeClosers...)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Unable to open snapshot store")
		return 2
	}

	adapters, err := InitiateAdapters(ctx)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Unable to start without a source adapter")
		return 2
	}
	refreshCfg := configuration.C.Refresh
	scheduler := usecase.NewRefreshScheduler(store, adapters, usecase.SchedulerConfig{
		CheckInterval:      refreshCfg.CheckInterval,
		StalenessThreshold: refreshCfg.StalenessThreshold,
		AdapterTimeout:     refreshCfg.AdapterTimeout,
		TargetCount:        refreshCfg.TargetCount,
		Mode:               usecase.RefreshMode(refreshCfg.Mode),
		FailoverThreshold:  refreshCfg.FailoverThreshold,
		FailoverCooldown:   refreshCfg.FailoverCooldown,
		Params: model.FetchParams{
			RegionCodes: configuration.C.YouTube.RegionCodes,
			CategoryIDs: configuration.C.YouTube.CategoryIDs,
		},
		SkipStartupCheck: !refreshCfg.OnStartup,
	})

	refreshMetrics := metrics.NewRefreshMetrics()
	scheduler.WithObserver(refreshMetrics)

	history, historyClose := InitiateHistory(ctx)
	if historyClose != nil {
		closers = append(closers, historyClose)
	}
	scheduler.WithHistory(history)

	hub := realtime.NewRefreshHub()
	scheduler.WithNotifier(hub)
	closers = append(closers, InitiateNotifiers(ctx, scheduler)...)

	_ = scheduler.Load(ctx)
	trendUseCase := usecase.NewTrendUseCaseWithHistory(scheduler, history)

	if flags.refreshOnce {
		res := scheduler.RefreshNow(ctx, model.TriggerCLI, flags.force)
		logger.GetLogger().WithFields(map[string]interface{}{
			"status": res.Status,
			"runId":  res.RunID,
			"reason": res.Reason,
		}).Info("Refresh finished")
		fmt.Println(res.Status)
		if res.Status == model.TriggerFailed {
			return 1
		}
		return 0
	}

	if flags.exportPath != "" {
		if err := exportCSV(ctx, trendUseCase, flags.exportPath); err != nil {
			logger.GetLogger().WithField("error", err).Error("Export failed")
			return 1
		}
		return 0
	}

	g, ctx := errgroup.WithContext(ctx)

	trendHandler := httpHandler.NewTrendHandler(trendUseCase)
	healthHandler := httpHandler.NewHealthHandler(trendUseCase)
	routerCfg := server.RouterConfig{
		AllowOrigins: app.AllowOrigins,
		SecretKey:    app.SecretKey,
	}
	if ytCfg, err := configuration.GetYouTubeConfig(); err == nil {
		if authHandler, err := httpHandler.NewYouTubeAuthHandler(ytCfg, configuration.YouTubeTokenFile); err == nil {
			routerCfg.YouTubeAuth = authHandler
		}
	}
	router := server.InitiateRouter(routerCfg, trendHandler, healthHandler, hub.Serve, refreshMetrics.Handler())

	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{
		"port":     port,
		"tls":      app.TLSEnabled,
		"adapters": len(adapters),
		"store":    store.Name(),
	}).Info("Starting application")
	httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if app.TLSEnabled {
			logger.GetLogger().WithFields(map[string]interface{}{"cert": app.TLSCertFile, "key": app.TLSKeyFile}).Info("Serving HTTPS")
			if err := httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		return 2
	}
	return 0
}

// errNoAdapters stops startup when no configured adapter could ever fetch.
var errNoAdapters = errors.New("no usable source adapters")

// InitiateAdapters builds the configured source adapters in priority order. It fails when
// none is left or every one of them lacks the credentials to fetch.
func InitiateAdapters(ctx context.Context) ([]repository.ISourceAdapter, error) {
	var adapters []repository.ISourceAdapter
	for _, name := range configuration.C.Refresh.Adapters {
		switch name {
		case "api":
			ytCfg, err := configuration.GetYouTubeConfig()
			if err != nil {
				logger.GetLogger().WithField("error", err).Warn("YouTube config unavailable, skipping api adapter")
				continue
			}
			yt := configuration.C.YouTube
			client, err := youtubeclient.NewYouTubeClient(ctx, &youtubeclient.Config{
				ClientID:          ytCfg.ClientID,
				ClientSecret:      ytCfg.ClientSecret,
				RedirectURL:       ytCfg.RedirectURL,
				AccessToken:       ytCfg.AccessToken,
				RefreshToken:      ytCfg.RefreshToken,
				APIKey:            ytCfg.APIKey,
				RegionCodes:       yt.RegionCodes,
				CategoryIDs:       yt.CategoryIDs,
				SearchKeywords:    yt.SearchKeywords,
				RequestsPerSecond: yt.RequestsPerSecond,
				MaxRetries:        yt.MaxRetries,
				Concurrency:       yt.Concurrency,
			})
			if err != nil {
				logger.GetLogger().WithField("error", err).Error("Error while creating YouTube client")
				continue
			}
			adapters = append(adapters, client)
		case "scraper":
			sc := configuration.C.Scraper
			adapters = append(adapters, scraper.NewTrendingScraper(scraper.Config{
				URL:            sc.URL,
				UserAgent:      sc.UserAgent,
				AcceptLanguage: sc.AcceptLanguage,
				Timeout:        sc.Timeout,
			}, nil))
		case "ytdlp":
			yc := configuration.C.YtDlp
			adapters = append(adapters, ytdlp.NewSearchAdapter(ytdlp.Config{
				Binary:          yc.Binary,
				KoreanKeywords:  yc.KoreanKeywords,
				EnglishKeywords: yc.EnglishKeywords,
				KoreanShare:     yc.KoreanShare,
			}, nil))
		default:
			logger.GetLogger().WithField("adapter", name).Warn("Unknown adapter ignored")
		}
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: none of %v could be built", errNoAdapters, configuration.C.Refresh.Adapters)
	}
	for _, a := range adapters {
		if c, ok := a.(interface{ Configured() bool }); !ok || c.Configured() {
			return adapters, nil
		}
	}
	return nil, fmt.Errorf("%w: every adapter lacks credentials", errNoAdapters)
}

// InitiateSnapshotStore opens the primary store and its mirrors. Mirrors that fail to open are skipped.
func InitiateSnapshotStore(ctx context.Context) (repository.ISnapshotStore, []func(), error) {
	cfg := configuration.C.Store
	var closers []func()

	primary, closer, err := openStore(ctx, cfg.Backend)
	if closer != nil {
		closers = append(closers, closer)
	}
	if err != nil {
		return nil, closers, fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}

	seen := map[string]bool{cfg.Backend: true}
	var mirrors []repository.ISnapshotStore
	for _, name := range cfg.Mirrors {
		if seen[name] {
			continue
		}
		seen[name] = true
		mirror, closer, err := openStore(ctx, name)
		if closer != nil {
			closers = append(closers, closer)
		}
		if err != nil {
			logger.GetLogger().WithField("store", name).WithField("error", err).Warn("Mirror store unavailable")
			continue
		}
		mirrors = append(mirrors, mirror)
	}
	return persistence.NewReplicatedSnapshotStore(primary, mirrors...), closers, nil
}

func openStore(ctx context.Context, backend string) (repository.ISnapshotStore, func(), error) {
	switch backend {
	case "file":
		return persistence.NewFileSnapshotStore(configuration.C.Store.FilePath), nil, nil
	case "postgres":
		db, err := persistence.NewPostgreSQLDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		closer := func() { _ = db.Close() }
		if err := persistence.EnsureTrendSnapshotSchema(db); err != nil {
			return nil, closer, err
		}
		return persistence.NewTrendSnapshotRepository(db), closer, nil
	case "mssql":
		db, err := persistence.NewMSSQLDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		closer := func() { _ = db.Close() }
		if err := persistence.EnsureTrendSnapshotSchemaMSSQL(db); err != nil {
			return nil, closer, err
		}
		return persistence.NewTrendSnapshotRepositoryMSSQL(db), closer, nil
	case "redis":
		rc := configuration.C.RedisClient
		dbIndex := 0
		if rc.DatabaseName != "" {
			n, err := strconv.Atoi(rc.DatabaseName)
			if err != nil {
				return nil, nil, fmt.Errorf("redis database must be numeric: %w", err)
			}
			dbIndex = n
		}
		client, err := cache.NewCache(ctx, fmt.Sprintf("%s:%s", rc.Host, rc.Port), rc.Username, rc.Password, dbIndex)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedisSnapshotStore(client, rc.Key, 0), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// InitiateHistory returns the refresh run log. Mongo falls back to memory when unreachable.
func InitiateHistory(ctx context.Context) (repository.IRefreshHistory, func()) {
	cfg := configuration.C.History
	if cfg.Backend == "mongo" {
		m := configuration.C.Database.Mongo
		client, err := persistence.NewMongoDb(ctx, m.Host, m.Port, m.User, m.Password)
		if err == nil {
			closer := func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(closeCtx)
			}
			return persistence.NewMongoRefreshHistory(client, m.Name, cfg.Collection), closer
		}
		logger.GetLogger().WithField("error", err).Warn("Mongo unavailable, keeping refresh history in memory")
	}
	return persistence.NewMemoryRefreshHistory(cfg.Capacity), nil
}

// InitiateNotifiers attaches the pubsub and service bus publishers when they are configured.
func InitiateNotifiers(ctx context.Context, scheduler *usecase.RefreshScheduler) []func() {
	var closers []func()

	ps := configuration.C.Pubsub
	if ps.ProjectID != "" && ps.TopicID != "" {
		client, err := pubsub.NewPubSub(ctx, ps.ProjectID)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while creating pubsub client")
		} else {
			publisher := pubsub.NewRefreshPublisher(client, ps.TopicID)
			scheduler.WithNotifier(publisher)
			closers = append(closers, func() {
				publisher.Stop()
				_ = client.Close()
			})
		}
	}

	sb := configuration.C.ServiceBus
	if sb.Namespace != "" && sb.Queue != "" {
		client, err := servicebus.NewServiceBus(sb.Namespace)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while creating service bus client")
		} else {
			scheduler.WithNotifier(servicebus.NewRefreshSender(client, sb.Queue))
			closers = append(closers, func() { _ = client.Close(context.Background()) })
		}
	}
	return closers
}

func exportCSV(ctx context.Context, uc usecase.ITrendUseCase, path string) error {
	file, err := filecsv.NewFile(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := uc.ExportCSV(ctx, &dto.TrendQueryRequest{}, file); err != nil {
		return fmt.Errorf("failed to export trends: %w", err)
	}
	logger.GetLogger().WithField("path", path).Info("Trends exported")
	return nil
}
