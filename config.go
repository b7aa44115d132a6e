package devserve

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/matthewmueller/devserve/livereload"
)

// Config for the development server. It's loaded once at startup.
type Config struct {
	WatchDir string
	ServeDir string
	Port     int
	Delay    time.Duration
	LogLevel slog.Level
}

// Default configuration serves and watches the current directory
func Default() *Config {
	return &Config{
		WatchDir: ".",
		ServeDir: ".",
		Port:     8080,
		Delay:    livereload.DefaultDelay,
		LogLevel: slog.LevelInfo,
	}
}

// Load the configuration from the environment. Unset variables keep their
// defaults.
func Load(getenv func(string) string) (*Config, error) {
	c := Default()
	if dir := getenv("WATCH_DIR"); dir != "" {
		c.WatchDir = dir
	}
	if dir := getenv("SERVE_DIR"); dir != "" {
		c.ServeDir = dir
	}
	if value := getenv("PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port < 0 || port > 65535 {
			return nil, fmt.Errorf("devserve: invalid PORT %q", value)
		}
		c.Port = port
	}
	if value := getenv("RELOAD_DELAY"); value != "" {
		delay, err := time.ParseDuration(value)
		if err != nil || delay < 0 {
			return nil, fmt.Errorf("devserve: invalid RELOAD_DELAY %q", value)
		}
		c.Delay = delay
	}
	if value := getenv("LOG_LEVEL"); value != "" {
		if err := c.LogLevel.UnmarshalText([]byte(value)); err != nil {
			return nil, fmt.Errorf("devserve: invalid LOG_LEVEL %q: %w", value, err)
		}
	}
	return c, nil
}

// Validate checks that the directories exist
func (c *Config) Validate() error {
	if err := isDir(c.ServeDir); err != nil {
		return fmt.Errorf("devserve: unable to serve %q: %w", c.ServeDir, err)
	}
	if err := isDir(c.WatchDir); err != nil {
		return fmt.Errorf("devserve: unable to watch %q: %w", c.WatchDir, err)
	}
	return nil
}

func isDir(dir string) error {
	stat, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("not a directory")
	}
	return nil
}
