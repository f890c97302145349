// Package server parses game server flags and launches the service.
package server

import (
	"context"
	"flag"

	app "github.com/splitpoint/ultimatum/internal/app/server"
	entrypoint "github.com/splitpoint/ultimatum/internal/platform/cmd"
)

// Config holds game server command configuration.
type Config struct {
	Port int    `env:"ULTIMATUM_PORT" envDefault:"8080"`
	Addr string `env:"ULTIMATUM_ADDR"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The game HTTP server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address; overrides -port when set")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(context.Context) error {
		if cfg.Addr != "" {
			return app.RunWithAddr(ctx, cfg.Addr)
		}
		return app.Run(ctx, cfg.Port)
	})
}
