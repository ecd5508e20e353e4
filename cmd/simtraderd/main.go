package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/simtrading/internal/admission"
	"github.com/wyfcoding/simtrading/internal/bus"
	"github.com/wyfcoding/simtrading/internal/ledger"
	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/market/opener"
	"github.com/wyfcoding/simtrading/internal/matching"
	"github.com/wyfcoding/simtrading/internal/matching/retry"
	"github.com/wyfcoding/simtrading/internal/order"
	"github.com/wyfcoding/simtrading/internal/platform/busx"
	"github.com/wyfcoding/simtrading/internal/platform/cachex"
	"github.com/wyfcoding/simtrading/internal/platform/config"
	"github.com/wyfcoding/simtrading/internal/platform/dbx"
	"github.com/wyfcoding/simtrading/internal/platform/httpx"
	"github.com/wyfcoding/simtrading/internal/platform/logging"
	"github.com/wyfcoding/simtrading/internal/platform/metrics"
	"github.com/wyfcoding/simtrading/internal/pricing/cache"
	"github.com/wyfcoding/simtrading/internal/pricing/feed"
	"github.com/wyfcoding/simtrading/internal/pricing/oracle"
	"github.com/wyfcoding/simtrading/internal/rest"
	"github.com/wyfcoding/simtrading/internal/stockref"
)

var configPath = flag.String("config", "configs/simtraderd/config.toml", "config file path")

// parseClockTime parses an "HH:MM" config value into hour and minute. A
// malformed value is an unrecoverable startup error, same as a bad DSN.
func parseClockTime(s string) (hour, minute int) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		slog.Error("invalid clock time in trading config", "value", s, "error", err)
		os.Exit(1)
	}
	return t.Hour(), t.Minute()
}

func main() {
	flag.Parse()

	// 1. Config
	var cfg config.Config
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	if err := logging.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 3. Metrics
	m := metrics.New(cfg.ServiceName)

	// 4. Database
	db, err := dbx.Init(dbx.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	if cfg.Environment == "dev" {
		if err := db.AutoMigrate(append(ledger.Models(), order.Models()...)...); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 5. Redis
	redisCache, err := cachex.New(cachex.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		slog.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}

	// 6. Kafka
	busxCfg := busx.Config{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
		MaxRetries:     cfg.Kafka.MaxRetries,
		RetryBackoffMS: cfg.Kafka.RetryBackoffMS,
	}
	producer := busx.NewProducer(busxCfg)
	activeReader := busx.NewConsumer(busxCfg, bus.TopicActive)
	retryReader := busx.NewConsumer(busxCfg, bus.TopicRetry)
	executionBus := bus.NewKafkaBus(producer, activeReader, retryReader)

	// 7. Domain collaborators
	l := ledger.New(db, ledger.Config{InitialCashMinorUnits: cfg.Trading.InitialCashMinorUnits})
	orders := order.New(db)
	clock := calendar.SystemClock{}
	openHour, openMinute := parseClockTime(cfg.Trading.MarketOpen)
	closeHour, closeMinute := parseClockTime(cfg.Trading.MarketClose)
	cal := calendar.New(clock, calendar.Config{
		OpenHour: openHour, OpenMinute: openMinute,
		CloseHour: closeHour, CloseMinute: closeMinute,
		Timezone: cfg.Trading.MarketTimezone,
	})
	catalog := stockref.New(stockref.Config{DefaultSystemPrice: cfg.Trading.DefaultPriceMinorUnits})
	priceCache := cache.NewRedisCache(redisCache)
	priceOracle := oracle.New(cal, priceCache, catalog, oracle.Config{FreshnessWindow: cfg.Trading.FreshnessWindow})

	admissionCfg := admission.Config{
		MaxQtyPerOrder:     cfg.Trading.MaxQtyPerOrder,
		MaxPriceMinorUnits: cfg.Trading.MaxPriceMinorUnits,
	}
	admissionSvc := admission.New(admissionCfg, l, orders, cal, priceOracle, catalog, executionBus, m)

	retryStore := retry.NewRedisStore(redisCache)
	retryScheduler := retry.New(retryStore, executionBus, clock, retry.Config{
		Delay: cfg.Trading.RetryDelay, MaxRetries: cfg.Trading.RetryMax,
	})
	retryDispatcher := retry.NewDispatcher(executionBus, clock)

	reservationOpener := opener.New(cal, priceOracle, l, orders, orders, executionBus, m)

	simFeed := feed.NewSimFeed(feed.NewCacheFeed(priceCache), catalog, 42)
	cleanupJob := cache.NewCleanupJob(priceCache, cfg.Trading.CacheCleanupInterval)

	// 8. HTTP
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(httpx.Logging(), httpx.Recovery(), httpx.Instrumentation(m))
	rest.New(admissionSvc, l, orders, priceOracle, cal).RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	// 9. Start
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(rootCtx)

	matchingCfg := matching.Config{
		FillRateFloor:   cfg.Trading.FillRateFloor,
		FillRateCeiling: cfg.Trading.FillRateCeiling,
	}
	for i := 0; i < cfg.Trading.MatchingWorkerCount; i++ {
		worker := matching.NewWorker(orders, l, retryScheduler, int64(1000+i), matchingCfg, m)
		g.Go(func() error {
			worker.Run(ctx, executionBus)
			return nil
		})
	}

	for i := 0; i < cfg.Trading.RetryDispatcherCount; i++ {
		g.Go(func() error {
			retryDispatcher.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		reservationOpener.Run(ctx)
		return nil
	})

	g.Go(func() error {
		simFeed.Run(ctx, 2*time.Second)
		return nil
	})

	g.Go(func() error {
		cleanupJob.Run(ctx)
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
		}
		slog.Info("HTTP server starting", "addr", addr)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		cancel()
		_ = executionBus.Close()
		_ = redisCache.Close()
		_ = db.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
