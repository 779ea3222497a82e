package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/app"
	"github.com/gmsas95/dosetrack/internal/config"
	"github.com/gmsas95/dosetrack/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	dumpConfig = flag.Bool("dump-config", false, "Print the effective configuration and exit")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	version    = "dev"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *dumpConfig {
		out, err := cfg.Dump()
		if err != nil {
			log.Fatalf("Failed to dump config: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	logger, err := newLogger(*debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	st, err := store.New(cfg)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}

	application, err := app.New(cfg, st, logger, version)
	if err != nil {
		st.Close()
		logger.Fatal("Failed to initialize", zap.Error(err))
	}

	if *configPath != "" {
		err := config.Watch(*configPath, func(next *config.Config) {
			logger.Info("configuration file changed; restart to apply",
				zap.Int("port", next.Server.Port))
		})
		if err != nil {
			logger.Warn("config watch unavailable", zap.Error(err))
		}
	}

	application.RunServer()
	os.Exit(0)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}
