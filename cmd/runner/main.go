package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"cross-venue-mm/config"
	"cross-venue-mm/execution"
	"cross-venue-mm/gateway"
	"cross-venue-mm/infrastructure/alert"
	"cross-venue-mm/infrastructure/logger"
	"cross-venue-mm/internal/engine"
	"cross-venue-mm/internal/status"
	"cross-venue-mm/market"
	"cross-venue-mm/metrics"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	dryRun := flag.Bool("dryRun", true, "对冲腿使用模拟执行，不向交易所下单")
	metricsAddr := flag.String("metricsAddr", "", "Prometheus metrics 监听地址，覆盖配置文件")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := metrics.New(metrics.DefaultConfig())
	if cfg.Metrics.Addr != "" {
		srv := metrics.StartMetricsServer(cfg.Metrics.Addr, monitor, func(err error) {
			lg.Error("metrics server failed", zap.Error(err))
		})
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		lg.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
	}

	sink, alerts := newSinks(ctx, cfg, lg)
	if closer, ok := sink.(*status.RedisSink); ok {
		defer closer.Close()
	}

	updates := make(chan config.AppConfig, 1)
	go func() {
		w := config.Watcher{
			Path: *cfgPath,
			OnError: func(err error) {
				lg.Warn("config reload rejected", zap.Error(err))
			},
		}
		err := w.Start(ctx, func(c config.AppConfig) {
			if *metricsAddr != "" {
				c.Metrics.Addr = *metricsAddr
			}
			select {
			case <-updates:
			default:
			}
			updates <- c
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			lg.Warn("config watcher stopped", zap.Error(err))
		}
	}()

	go watchdog(ctx, lg)
	notify(lg, daemon.SdNotifyReady)

	for {
		runCtx, cancelRun := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func(c config.AppConfig) {
			done <- run(runCtx, c, *dryRun, monitor, sink, alerts, lg)
		}(cfg)

		select {
		case <-ctx.Done():
			notify(lg, daemon.SdNotifyStopping)
			cancelRun()
			if err := <-done; err != nil {
				lg.Error("engine exited with error", zap.Error(err))
			}
			lg.Info("shutdown complete")
			return
		case next := <-updates:
			lg.Info("config changed, restarting engine", zap.String("path", *cfgPath))
			notify(lg, daemon.SdNotifyReloading)
			cancelRun()
			if err := <-done; err != nil {
				lg.Error("engine exited with error", zap.Error(err))
			}
			if next.Symbol != cfg.Symbol {
				lg.Warn("symbol changed; status and alert keys keep the startup symbol",
					zap.String("from", cfg.Symbol), zap.String("to", next.Symbol))
			}
			cfg = next
			notify(lg, daemon.SdNotifyReady)
		case err := <-done:
			cancelRun()
			lg.Error("engine stopped unexpectedly", zap.Error(err))
			lg.Close()
			os.Exit(1)
		}
	}
}

// run 组装一轮引擎并阻塞到 ctx 结束；配置变更时整体重建。
func run(ctx context.Context, cfg config.AppConfig, dryRun bool, monitor *metrics.Monitor, sink status.Sink, alerts *alert.Manager, lg *logger.Logger) error {
	publisher := market.NewPublisher()
	paper := gateway.NewPaperVenueX(lg.Named("venue_x"))
	go paper.Watch(ctx, publisher.SubscribeTrade())

	exec, cleanup, err := newExecutor(ctx, cfg, dryRun, monitor, lg)
	if err != nil {
		return err
	}
	defer cleanup()

	eng, err := engine.New(cfg, engine.Components{
		Feed:      gateway.NewBinanceFeed(cfg.Gateway.WsURL, cfg.Symbol, lg.Named("feed")),
		Quoter:    paper,
		Fills:     paper,
		Executor:  exec,
		Status:    sink,
		Monitor:   monitor,
		Logger:    lg,
		Alerts:    alerts,
		Publisher: publisher,
	})
	if err != nil {
		return err
	}
	lg.Info("engine configured",
		zap.String("symbol", cfg.Symbol),
		zap.String("venue_x", cfg.VenueX),
		zap.String("venue_y", cfg.VenueY),
		zap.Bool("dry_run", dryRun))
	return eng.Run(ctx)
}

// newExecutor 模拟模式用 Simulated；实盘模式用 REST 执行器，启动与退出时撤掉残留的 maker 腿。
func newExecutor(ctx context.Context, cfg config.AppConfig, dryRun bool, monitor *metrics.Monitor, lg *logger.Logger) (execution.Executor, func(), error) {
	if dryRun {
		return execution.NewSimulated(cfg.FeesY.TakerBps, cfg.FeesY.MakerBps), func() {}, nil
	}
	client := &gateway.BinanceRESTClient{
		BaseURL:      cfg.Gateway.RestURL,
		APIKey:       cfg.Gateway.APIKey,
		Secret:       cfg.Gateway.APISecret,
		RecvWindowMs: cfg.Gateway.RecvWindowMs,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		Limiter:      gateway.NewTokenBucketLimiter(cfg.Risk.MaxOrderRatePerS, int(cfg.Risk.MaxOrderRatePerS)),
		Recorder:     monitor,
	}
	venue, err := execution.NewVenueY(cfg.Symbol, client,
		cfg.Gateway.PricePrecision, cfg.Gateway.QtyPrecision, cfg.FeesY.TakerBps, cfg.FeesY.MakerBps)
	if err != nil {
		return nil, nil, err
	}
	if err := client.CancelAll(ctx, cfg.Symbol); err != nil {
		lg.Warn("cancel resting hedge orders failed", zap.Error(err))
	}
	cleanup := func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.CancelAll(cctx, cfg.Symbol); err != nil {
			lg.Warn("cancel resting hedge orders failed", zap.Error(err))
		}
	}
	return venue, cleanup, nil
}

// newSinks Redis 可用时同时用于状态发布和告警频道，否则只写日志。
func newSinks(ctx context.Context, cfg config.AppConfig, lg *logger.Logger) (status.Sink, *alert.Manager) {
	alerts := alert.NewManager(cfg.Symbol, []alert.Channel{alert.NewZapChannel(lg.Logger)}, time.Minute)
	if cfg.Status.RedisAddr == "" {
		return status.NopSink{}, alerts
	}
	rs, err := status.Dial(ctx, cfg.Status.RedisAddr, cfg.Status.RedisDB, cfg.Status.KeyPrefix)
	if err != nil {
		lg.Warn("redis unavailable, status publishing disabled", zap.Error(err))
		return status.NopSink{}, alerts
	}
	alerts.AddChannel(alert.NewRedisChannel(rs.Client(), cfg.Status.KeyPrefix, cfg.Symbol))
	lg.Info("publishing status to redis", zap.String("key", rs.Key(cfg.Symbol)))
	return rs, alerts
}

func notify(lg *logger.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		lg.Debug("sd_notify failed", zap.String("state", state), zap.Error(err))
	}
}

// watchdog systemd 开启 WatchdogSec 时按一半间隔喂狗。
func watchdog(ctx context.Context, lg *logger.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notify(lg, daemon.SdNotifyWatchdog)
		}
	}
}
