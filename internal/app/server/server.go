// Package server wires the game runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/splitpoint/ultimatum/internal/api/web"
	"github.com/splitpoint/ultimatum/internal/game/counterpart"
	"github.com/splitpoint/ultimatum/internal/game/counterpart/luascript"
	"github.com/splitpoint/ultimatum/internal/game/counterpart/openrouter"
	"github.com/splitpoint/ultimatum/internal/game/service"
	"github.com/splitpoint/ultimatum/internal/platform/config"
	"github.com/splitpoint/ultimatum/internal/storage/memory"
	"github.com/splitpoint/ultimatum/internal/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

type serverEnv struct {
	DBPath            string `env:"ULTIMATUM_DB_PATH"`
	OpenRouterAPIKey  string `env:"ULTIMATUM_OPENROUTER_API_KEY"`
	OpenRouterModel   string `env:"ULTIMATUM_OPENROUTER_MODEL"`
	OpenRouterURL     string `env:"ULTIMATUM_OPENROUTER_URL"`
	CounterpartScript string `env:"ULTIMATUM_COUNTERPART_SCRIPT"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "ultimatum.db")
	}
	return cfg
}

// Server hosts the game HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	board      *sqlite.Store
}

// New creates a configured game server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured game server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	board, err := openLeaderboardStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	cp, err := buildCounterpart(env)
	if err != nil {
		_ = listener.Close()
		_ = board.Close()
		return nil, err
	}

	svc := service.New(memory.NewSessionStore(), board, cp)
	handler := web.NewHandler(svc).Routes()

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           otelhttp.NewHandler(handler, "ultimatum.api"),
			ReadHeaderTimeout: 10 * time.Second,
		},
		board: board,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a game server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// RunWithAddr creates and serves a game server on an explicit address.
func RunWithAddr(ctx context.Context, addr string) error {
	server, err := NewWithAddr(addr)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("game server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// Close releases game server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.board != nil {
		if err := s.board.Close(); err != nil {
			log.Printf("close leaderboard store: %v", err)
		}
	}
}

func openLeaderboardStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open leaderboard sqlite store: %w", err)
	}
	return store, nil
}

// buildCounterpart picks the remote reasoning counterpart when an API key is
// configured and falls back to a scripted policy otherwise.
func buildCounterpart(env serverEnv) (counterpart.Counterpart, error) {
	if key := strings.TrimSpace(env.OpenRouterAPIKey); key != "" {
		cp, err := openrouter.New(openrouter.Config{
			APIKey: key,
			Model:  strings.TrimSpace(env.OpenRouterModel),
			URL:    strings.TrimSpace(env.OpenRouterURL),
		})
		if err != nil {
			return nil, fmt.Errorf("configure openrouter counterpart: %w", err)
		}
		return cp, nil
	}
	if script := strings.TrimSpace(env.CounterpartScript); script != "" {
		cp, err := luascript.New(script)
		if err != nil {
			return nil, fmt.Errorf("load counterpart script %s: %w", script, err)
		}
		return cp, nil
	}
	return nil, errors.New("no counterpart configured: set ULTIMATUM_OPENROUTER_API_KEY or ULTIMATUM_COUNTERPART_SCRIPT")
}
