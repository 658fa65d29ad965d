// Package config parses the server's command-line flags into a Config,
// modeled on xtaci-kcptun/server/main.go's cli.App flag table: one
// cli.StringFlag/cli.IntFlag/cli.BoolFlag per setting, with a short
// single-letter alias alongside the long name where the original used
// a bare getopt-style switch.
package config

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/yourusername/webserver/internal/applog"
	"github.com/yourusername/webserver/internal/dbpool"
	"github.com/yourusername/webserver/internal/httpstate"
	"github.com/yourusername/webserver/internal/workerpool"
)

// Config is the fully parsed, validated set of settings the server
// needs to start, carrying forward every flag original_source's main.cpp
// read via getopt (-p -l -m -o -s -t -c -a) plus the document root and
// database connection flags this module adds.
type Config struct {
	Port int

	AsyncLog    bool
	DisableLog  bool
	TrigMode    int // 0-3: bit0 selects listen-fd trigger, bit1 selects conn-fd trigger
	OptLinger   bool
	SQLPoolSize int
	ThreadCount int
	ActorModel  int // 0 = proactor, 1 = reactor

	DocRoot string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	LogDir        string
	LogBaseName   string
	LogSplitLines int

	MetricsAddr string
}

// ListenAddr renders Port as a "host:port" string for net.Listen.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ListenMode reports whether the listening socket itself should be
// registered edge-triggered, TRIGMode bit 0.
func (c Config) ListenMode() httpstate.Mode {
	if c.TrigMode&0x1 != 0 {
		return httpstate.ModeEdgeTriggered
	}
	return httpstate.ModeLevelTriggered
}

// ConnMode reports whether per-connection fds should be edge-triggered,
// TRIGMode bit 1.
func (c Config) ConnMode() httpstate.Mode {
	if c.TrigMode&0x2 != 0 {
		return httpstate.ModeEdgeTriggered
	}
	return httpstate.ModeLevelTriggered
}

// Concurrency maps ActorModel onto workerpool.Mode.
func (c Config) Concurrency() workerpool.Mode {
	if c.ActorModel == 1 {
		return workerpool.ModeReactor
	}
	return workerpool.ModeProactor
}

// DBConfig builds the dbpool.Config this server's DB flags describe.
func (c Config) DBConfig() dbpool.Config {
	return dbpool.Config{
		Host:            c.DBHost,
		Port:            c.DBPort,
		User:            c.DBUser,
		Password:        c.DBPassword,
		DBName:          c.DBName,
		Capacity:        c.SQLPoolSize,
		ConnMaxLifetime: time.Hour,
	}
}

// LogOptions builds the applog.Options this server's logging flags
// describe.
func (c Config) LogOptions() applog.Options {
	return applog.Options{
		Dir:           c.LogDir,
		BaseName:      c.LogBaseName,
		SplitLines:    c.LogSplitLines,
		QueueCapacity: 8192,
		Async:         c.AsyncLog,
		Disabled:      c.DisableLog,
	}
}

// Flags is the cli.App flag table, matching spec's external interface
// section flag-for-flag: -p, -l, -m, -o, -s, -t, -c, -a, plus -r and
// the --db-* flags this module adds for the document root and database
// connection the original instead compiled in as constants.
func Flags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{Name: "port, p", Value: 9006, Usage: "listen port"},
		cli.IntFlag{Name: "log-mode, l", Value: 0, Usage: "0 sync logging, 1 async logging"},
		cli.IntFlag{Name: "trig-mode, m", Value: 0, Usage: "0-3: bit0 listen trigger, bit1 connection trigger (0=LT, 1=ET)"},
		cli.IntFlag{Name: "linger, o", Value: 0, Usage: "0 close immediately on shutdown, 1 linger"},
		cli.IntFlag{Name: "sql-pool, s", Value: 8, Usage: "database connection pool size"},
		cli.IntFlag{Name: "threads, t", Value: 8, Usage: "worker thread count"},
		cli.IntFlag{Name: "close-log, c", Value: 0, Usage: "1 disables logging entirely"},
		cli.IntFlag{Name: "actor-model, a", Value: 0, Usage: "0 proactor (reactor reads/writes, workers process), 1 reactor (workers read/write too)"},

		cli.StringFlag{Name: "doc-root, r", Value: "./root", Usage: "static file document root"},

		cli.StringFlag{Name: "db-host", Value: "127.0.0.1", Usage: "MySQL host"},
		cli.IntFlag{Name: "db-port", Value: 3306, Usage: "MySQL port"},
		cli.StringFlag{Name: "db-user", Value: "root", Usage: "MySQL user"},
		cli.StringFlag{Name: "db-password", Value: "", Usage: "MySQL password"},
		cli.StringFlag{Name: "db-name", Value: "webserver", Usage: "MySQL database name"},

		cli.StringFlag{Name: "log-dir", Value: "./log", Usage: "log file directory"},
		cli.StringFlag{Name: "log-base-name", Value: "server", Usage: "log file base name"},
		cli.IntFlag{Name: "log-split-lines", Value: 5000000, Usage: "max lines per log file before rotating to a continuation file"},

		cli.StringFlag{Name: "metrics-addr", Value: "", Usage: "address to serve Prometheus metrics on, e.g. :9100 (empty disables it)"},
	}
}

// FromContext builds a Config from a parsed cli.Context, validating the
// combinations the original's main() checked by hand (actor_model and
// trig_mode both restricted to small integer ranges).
func FromContext(c *cli.Context) (Config, error) {
	cfg := Config{
		Port:          c.Int("port"),
		AsyncLog:      c.Int("log-mode") == 1,
		DisableLog:    c.Int("close-log") == 1,
		TrigMode:      c.Int("trig-mode"),
		OptLinger:     c.Int("linger") == 1,
		SQLPoolSize:   c.Int("sql-pool"),
		ThreadCount:   c.Int("threads"),
		ActorModel:    c.Int("actor-model"),
		DocRoot:       c.String("doc-root"),
		DBHost:        c.String("db-host"),
		DBPort:        c.Int("db-port"),
		DBUser:        c.String("db-user"),
		DBPassword:    c.String("db-password"),
		DBName:        c.String("db-name"),
		LogDir:        c.String("log-dir"),
		LogBaseName:   c.String("log-base-name"),
		LogSplitLines: c.Int("log-split-lines"),
		MetricsAddr:   c.String("metrics-addr"),
	}
	if cfg.TrigMode < 0 || cfg.TrigMode > 3 {
		return Config{}, fmt.Errorf("config: trig-mode must be 0-3, got %d", cfg.TrigMode)
	}
	if cfg.ActorModel != 0 && cfg.ActorModel != 1 {
		return Config{}, fmt.Errorf("config: actor-model must be 0 or 1, got %d", cfg.ActorModel)
	}
	if cfg.SQLPoolSize <= 0 {
		return Config{}, fmt.Errorf("config: sql-pool must be positive, got %d", cfg.SQLPoolSize)
	}
	if cfg.ThreadCount <= 0 {
		return Config{}, fmt.Errorf("config: threads must be positive, got %d", cfg.ThreadCount)
	}
	return cfg, nil
}
