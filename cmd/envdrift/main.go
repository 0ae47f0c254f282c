package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aleister1102/envdrift/internal/config"
	"github.com/aleister1102/envdrift/internal/datastore"
	"github.com/aleister1102/envdrift/internal/differ"
	"github.com/aleister1102/envdrift/internal/explainer"
	"github.com/aleister1102/envdrift/internal/gateway"
	"github.com/aleister1102/envdrift/internal/logger"
	"github.com/aleister1102/envdrift/internal/orchestrator"
	"github.com/aleister1102/envdrift/internal/probe"
)

func main() {
	configFile := flag.String("config", "", "Path to the YAML/JSON configuration file. If not set, searches default locations.")
	configFileAlias := flag.String("c", "", "Alias for --config")
	listenAddr := flag.String("listen", "", "Listen address override, e.g. :8787 (takes precedence over the config file)")
	flag.Parse()

	if *configFile == "" && *configFileAlias != "" {
		*configFile = *configFileAlias
	}

	bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()

	configPath := config.GetConfigPath(*configFile)
	gCfg, err := config.LoadGlobalConfig(configPath, bootstrap)
	if err != nil {
		log.Fatalf("[FATAL] Could not load config from '%s': %v", configPath, err)
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Could not initialize logger: %v", err)
	}

	if *listenAddr != "" {
		gCfg.ServerConfig.ListenAddr = *listenAddr
		zLogger.Info().Str("listen_addr", *listenAddr).Msg("Listen address overridden by command line flag")
	}

	stores := datastore.NewManager(gCfg.StorageConfig, zLogger)
	defer func() {
		if err := stores.Close(); err != nil {
			zLogger.Error().Err(err).Msg("Failed to close pair stores")
		}
	}()

	prober, err := probe.NewProber(gCfg.ProbeConfig, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to initialize prober")
	}

	provider, err := explainer.NewProvider(gCfg.ExplainerConfig)
	if err != nil {
		// Missing model credentials degrade the explanation, never the
		// comparison itself.
		zLogger.Warn().Err(err).Msg("Explanation provider unavailable; falling back to static explanations")
		provider = &explainer.StaticProvider{}
	}
	explanations := explainer.NewExplainer(provider, gCfg.ExplainerConfig, zLogger)

	orch := orchestrator.NewOrchestrator(
		stores,
		prober,
		differ.NewDiffer(zLogger),
		explanations,
		gCfg.WorkflowConfig,
		gCfg.StorageConfig,
		zLogger,
	)

	server := gateway.NewServer(gCfg.ServerConfig, stores, orch, zLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zLogger.Info().
		Str("listen_addr", gCfg.ServerConfig.ListenAddr).
		Str("storage_root", gCfg.StorageConfig.RootPath).
		Str("explainer", provider.Name()).
		Msg("envdrift starting")

	if err := server.Start(ctx); err != nil {
		zLogger.Fatal().Err(err).Msg("Gateway terminated with error")
	}
	zLogger.Info().Msg("envdrift stopped")
}
