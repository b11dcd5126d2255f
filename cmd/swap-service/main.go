package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"solswap/pkg/config"
	"solswap/pkg/metrics"
	"solswap/pkg/swap"
)

var (
	configPath = flag.String("config", "", "Path to a YAML service config (optional)")
	envFile    = flag.String("env", ".env", "Path to a .env file (optional)")
)

func main() {
	flag.Parse()

	// Load .env file
	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", *envFile, err)
	}

	fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(
			loadServiceConfig,
			newLogger,
			metrics.New,
			newJupiterClient,
			newExecutor,
			fx.Annotate(
				config.NewEnvSource,
				fx.As(new(config.Source)),
			),
			swap.NewHandler,
			NewServeMux,
			NewHttpServer,
		),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}

func loadServiceConfig() (config.Service, error) {
	cfg, err := config.LoadService(*configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}
