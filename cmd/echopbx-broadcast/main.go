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

	"github.com/EchoPBX/echopbx-broadcast/internal/broadcast"
	"github.com/EchoPBX/echopbx-broadcast/internal/capabilities"
	"github.com/EchoPBX/echopbx-broadcast/internal/config"
	"github.com/EchoPBX/echopbx-broadcast/internal/events"
	"github.com/EchoPBX/echopbx-broadcast/internal/httpserver"
	"github.com/EchoPBX/echopbx-broadcast/internal/logging"
	"github.com/EchoPBX/echopbx-broadcast/internal/plugins"
	"github.com/EchoPBX/echopbx-broadcast/internal/reloader"
	"github.com/EchoPBX/echopbx-broadcast/internal/transport"
	"github.com/EchoPBX/echopbx-broadcast/internal/transport/console"
	"github.com/EchoPBX/echopbx-broadcast/internal/transport/redisstream"
	"github.com/EchoPBX/echopbx-broadcast/internal/transport/sse"
	"github.com/EchoPBX/echopbx-broadcast/internal/transport/ws"
	"github.com/EchoPBX/echopbx-broadcast/internal/upstream"
	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfgPath := os.Getenv("ECHOPBX_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	logger := logging.Must(logging.Cfg{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.JSON,
	})
	defer logger.Sync()

	// Banner
	fmt.Println(`
  ______     _           _____  ______   __
 |  ____|   | |         |  __ \|  _ \ \ / /
 | |__   ___| |__   ___ | |__) | |_) \ V /
 |  __| / __| '_ \ / _ \|  ___/|  _ < > <
 | |___| (__| | | | (_) | |    | |_) / . \
 |______\___|_| |_|\___/|_|    |____/_/ \_\

EchoPBX Broadcast — kernel event relay
------------------------------------------
Config:  ` + cfgPath + `
`)

	bus := events.NewBus(logger.Named("bus"))
	caps := capabilities.NewRegistry(logger.Named("capabilities"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := broadcast.NewMetrics(reg)

	// Transportes: todos quedan bajo una sola capability
	var sinks transport.Multi
	var wsHandler *ws.Handler
	var sseHandler *sse.Handler
	var rdb *redis.Client
	if cfg.Transports.WebSocket.Enabled {
		wsHandler = ws.NewHandler(logger.Named("ws"), cfg.Transports.WebSocket.Buffer)
		sinks = append(sinks, wsHandler)
	}
	if cfg.Transports.SSE.Enabled {
		sseHandler = sse.NewHandler(logger.Named("sse"), cfg.Transports.SSE.Buffer)
		sinks = append(sinks, sseHandler)
	}
	if cfg.Transports.Console.Enabled {
		sinks = append(sinks, console.New(logger, zapcore.InfoLevel))
	}
	if cfg.Transports.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Transports.Redis.Addr,
			Password: cfg.Transports.Redis.Password,
			DB:       cfg.Transports.Redis.DB,
		})
		sinks = append(sinks, redisstream.New(rdb, cfg.Transports.Redis.Stream, cfg.Transports.Redis.MaxLen, logger.Named("redis"),
			redisstream.WithTimeout(cfg.Transports.Redis.Timeout)))
	}
	if len(sinks) > 0 {
		caps.Register(cfg.Transports.Capability, sinks)
	} else {
		logger.Warn("no transport enabled, events will not leave the process")
	}

	pluginMgr := plugins.NewManager(logger, bus, caps)
	pluginMgr.Provide(broadcast.Name, func() sdk.Plugin {
		return broadcast.NewModule(broadcast.WithMetrics(metrics))
	})
	_ = pluginMgr.Load(cfg.Modules)

	deps := httpserver.Deps{
		Bus:          bus,
		Capabilities: caps,
		Plugins:      pluginMgr,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if wsHandler != nil {
		deps.WebSocket = wsHandler
	}
	if sseHandler != nil {
		deps.SSE = sseHandler
	}
	srv, err := httpserver.New(cfg, logger.Named("http"), deps)
	if err != nil {
		logger.Fatal("http server", zap.Error(err))
	}

	up := upstream.NewClient(cfg, logger.Named("upstream"), bus)

	// Upstream loop
	ctx, cancel := context.WithCancel(context.Background())
	go up.Run(ctx)

	// Hot reload con SIGHUP
	reloader.OnSIGHUP(ctx, reloadFrom(cfgPath, logger,
		up.Reload,
		srv.Reload,
		func(c *config.Config) { _ = pluginMgr.Reload(c.Modules) },
	))

	// bind y TLS se leen una sola vez: SIGHUP no reabre el listener
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Bind, cfg.HTTP.Port)
	tls := cfg.HTTP.TLS
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// HTTP server
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if tls.Enabled {
			if err := httpSrv.ListenAndServeTLS(tls.Cert, tls.Key); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http tls", zap.Error(err))
			}
		} else {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down...")
	cancel()
	up.Close()
	pluginMgr.Shutdown()
	if wsHandler != nil {
		wsHandler.Close()
	}
	if sseHandler != nil {
		sseHandler.Close()
	}

	ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = httpSrv.Shutdown(ctxTimeout)
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Info("bye")
}

// reloadFrom relee path y se lo pasa a cada apply. La config del arranque no
// se toca: bind y TLS solo cambian reiniciando.
func reloadFrom(path string, logger *zap.Logger, apply ...func(*config.Config)) func() {
	return func() {
		newCfg, err := config.Load(path)
		if err != nil {
			logger.Warn("config reload failed", zap.Error(err))
			return
		}
		for _, fn := range apply {
			fn(newCfg)
		}
		logger.Info("reloaded config and modules")
	}
}
