package dirserve

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

const (
	// DefaultHost is the only address the server listens on.
	DefaultHost = "127.0.0.1"
	DefaultPort = 9234
)

type serverConfig struct {
	port   int
	logger *slog.Logger
}

func newServerConfig(opts []ServerOption) (*serverConfig, error) {
	cfg := &serverConfig{
		port:   DefaultPort,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (cfg *serverConfig) address() string {
	return net.JoinHostPort(DefaultHost, strconv.Itoa(cfg.port))
}

type ServerOption func(*serverConfig) error

// ServerPort sets the loopback port to listen on. Zero picks a free port.
func ServerPort(port int) ServerOption {
	return func(cfg *serverConfig) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid port %d", port)
		}
		cfg.port = port
		return nil
	}
}

func ServerLogger(logger *slog.Logger) ServerOption {
	return func(cfg *serverConfig) error {
		cfg.logger = logger
		return nil
	}
}
