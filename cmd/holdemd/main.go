package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/cardroom/holdemd/internal/anticheat"
	"github.com/cardroom/holdemd/internal/server"
	"github.com/cardroom/holdemd/internal/service"
	"github.com/cardroom/holdemd/internal/store"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"holdemd.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Listen address (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := server.LoadServerConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		kctx.Exit(1)
	}
	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
		cfg.Server.Port = 0
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Printf("Error opening log file: %v\n", err)
			kctx.Exit(1)
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder service.Recorder = store.NopRecorder{}
	if cfg.Persistence != nil {
		pg, err := store.OpenPostgres(ctx, cfg.Persistence.PostgresDSN, logger)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			kctx.Exit(1)
		}
		defer pg.Close()
		recorder = pg
	}

	clock := quartz.NewReal()
	var guard service.Guard
	if cfg.AntiCheat != nil {
		guard = anticheat.New(logger, clock, cfg.AntiCheat.BannedAddrs, cfg.AntiCheat.MaxPlayersPerAddr)
	}

	svc := service.NewService(logger, clock, recorder, nil, guard)
	defer svc.Close()

	srv := server.NewServer(listenAddr(cfg), svc, logger)
	svc.SetNotifier(srv)

	for _, tableConfig := range cfg.Tables {
		id, err := svc.CreateTable(tableConfig.Name, tableConfig.EngineConfig())
		if err != nil {
			logger.Error("table create failed", "table", tableConfig.Name, "error", err)
			kctx.Exit(1)
		}
		logger.Info("table ready", "table", tableConfig.Name, "id", id,
			"stakes", fmt.Sprintf("%d/%d", tableConfig.SmallBlind, tableConfig.BigBlind))
	}

	logger.Info("starting holdemd", "addr", listenAddr(cfg), "tables", len(cfg.Tables))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return srv.Stop()
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		kctx.Exit(1)
	}
}

func listenAddr(cfg *server.ServerConfig) string {
	if cfg.Server.Port == 0 {
		return cfg.Server.Address
	}
	return cfg.Server.ListenAddr()
}
