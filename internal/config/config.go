// Package config loads sidecar configuration from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultHost is the only interface the sidecar listens on.
const DefaultHost = "127.0.0.1"

// sidecarEnv holds raw env values.
type sidecarEnv struct {
	Port            string        `env:"API_PORT"`
	Host            string        `env:"API_HOST" envDefault:"127.0.0.1"`
	LogPath         string        `env:"API_LOG_PATH"`
	MaxJobs         int           `env:"HARMONIZE_MAX_CONCURRENT_JOBS" envDefault:"0"`
	ShutdownTimeout time.Duration `env:"HARMONIZE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sidecar is the validated configuration of the RPC sidecar.
type Sidecar struct {
	Port            int
	Host            string
	LogPath         string
	MaxJobs         int
	ShutdownTimeout time.Duration
}

// Addr returns host:port.
func (s Sidecar) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads the sidecar configuration from the process environment.
func Load() (Sidecar, error) {
	return parse(env.Options{})
}

// LoadFrom reads the sidecar configuration from the given variables
// instead of the process environment.
func LoadFrom(vars map[string]string) (Sidecar, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Sidecar, error) {
	var raw sidecarEnv
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return Sidecar{}, fmt.Errorf("parse env: %w", err)
	}

	port, err := parsePort(raw.Port)
	if err != nil {
		return Sidecar{}, err
	}
	host, err := resolveHost(raw.Host)
	if err != nil {
		return Sidecar{}, err
	}
	if raw.MaxJobs < 0 {
		return Sidecar{}, fmt.Errorf("HARMONIZE_MAX_CONCURRENT_JOBS must not be negative, got %d", raw.MaxJobs)
	}
	if raw.ShutdownTimeout <= 0 {
		return Sidecar{}, fmt.Errorf("HARMONIZE_SHUTDOWN_TIMEOUT must be positive, got %s", raw.ShutdownTimeout)
	}
	return Sidecar{
		Port:            port,
		Host:            host,
		LogPath:         strings.TrimSpace(raw.LogPath),
		MaxJobs:         raw.MaxJobs,
		ShutdownTimeout: raw.ShutdownTimeout,
	}, nil
}

func parsePort(value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("API_PORT is required")
	}
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("API_PORT must be an integer, got %q", value)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("API_PORT must be in range 1-65535, got %d", port)
	}
	return port, nil
}

// resolveHost restricts the listen address to loopback.
func resolveHost(value string) (string, error) {
	host := strings.TrimSpace(value)
	if host == "" {
		host = DefaultHost
	}
	switch host {
	case DefaultHost:
		return host, nil
	case "localhost":
		return DefaultHost, nil
	}
	return "", fmt.Errorf("API_HOST must be loopback (127.0.0.1 or localhost), got %q", host)
}

// NewLogger builds the sidecar's JSON logger. Records go to stdout and,
// when LogPath is set, also to that file. The returned closer closes the
// file.
func (s Sidecar) NewLogger(stdout io.Writer, level slog.Level) (*slog.Logger, io.Closer, error) {
	var w io.Writer = stdout
	var closer io.Closer = nopCloser{}
	if s.LogPath != "" {
		f, err := os.OpenFile(s.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("API_LOG_PATH is not writable: %s", s.LogPath)
		}
		w = io.MultiWriter(stdout, f)
		closer = f
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
