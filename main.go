package main

import (
	adhoc "YoloDetServer/Adhoc"
	"YoloDetServer/api"
	"YoloDetServer/config"
	"YoloDetServer/engine"
	backend "YoloDetServer/gRPC"
	"YoloDetServer/logger"
	"YoloDetServer/monitor"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path of the yaml config file")
	dev := flag.Bool("dev", false, "human readable development logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
	if err := logger.InitLevel(cfg.LogLevel, *dev); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if err := run(cfg); err != nil {
		logger.Log().Error("exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Log().Info("Safely exited")
}

func run(cfg config.Config) error {
	log := logger.Log()
	log.Info("starting",
		zap.Int("cpus", runtime.NumCPU()),
		zap.Int("rpcPort", cfg.RPCPort),
		zap.Int("httpPort", cfg.HTTPPort),
		zap.Int("adhocPort", cfg.AdhocPort))

	if err := engine.InitRuntime(cfg.Engine.SharedLibraryPath); err != nil {
		return err
	}
	defer engine.DestroyRuntime()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	var wg sync.WaitGroup

	mon := monitor.New()
	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.StartMon(ctx, cfg.AdhocPort)
	}()

	registry := engine.NewRegistry()
	defer registry.DestroyAll()

	detector, err := engine.NewOnnxDetector(cfg.Engine.ToEngine(), mon)
	if err != nil {
		return fmt.Errorf("load initial engine: %w", err)
	}
	id := registry.Add(detector)
	mon.SetEngines(registry.Len())
	log.Info("Initialized engine", zap.String("ID", id), zap.String("ModelPath", cfg.Engine.ModelAssetPath))

	rpc := backend.NewServer(registry, mon, engine.NewOnnxDetector, cfg.Engine.ToEngine())
	grpcServer, err := backend.StartGRPCServer(cfg.RPCPort, rpc)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: (&api.Server{Registry: registry, Monitor: mon}).Router(),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("HTTP server listening", zap.Int("port", cfg.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped", zap.Error(err))
			cancel()
		}
	}()

	if cfg.UseRegServer {
		ip, err := adhoc.GetOutboundIP()
		if err != nil {
			log.Warn("Failed to get outbound IP", zap.Error(err))
		}
		hb := adhoc.NewHeartbeat(cfg.RegServerHost, cfg.RegServerPort)
		hb.IP, hb.RPCPort, hb.HTTPPort = ip, cfg.RPCPort, cfg.HTTPPort
		hb.Engines = registry.Len
		wg.Add(1)
		go func() {
			defer wg.Done()
			hb.Run(ctx)
		}()
	} else {
		log.Info("UseRegServer is set to false, skipping registration")
	}

	select {
	case <-ctx.Done():
		log.Info("signal received, shutting down")
	case <-rpc.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	wg.Wait()
	return nil
}
