// Package main is an event tracker: counters over a wide-column store with
// an HTTP front. Configuration is via environment variables or an optional
// .env file; the common deployment knobs are also flags.
package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hiitrack.dev/config"
	"hiitrack.dev/engine"
	"hiitrack.dev/server"
	"hiitrack.dev/store"
	"hiitrack.dev/store/badgerstore"
	"hiitrack.dev/store/cassandra"
	"hiitrack.dev/utils/context"
	"hiitrack.dev/utils/interrupt"
	"hiitrack.dev/version"
)

// flags override the environment configuration for the common deployment
// knobs.
type flags struct {
	Port          int    `arg:"--port" help:"port to listen on"`
	CassandraHost string `arg:"--cassandra-host" help:"cassandra contact point"`
	CassandraPort int    `arg:"--cassandra-port" help:"cassandra native protocol port"`
	DataDir       string `arg:"--data-dir" help:"storage location for the badger store"`
	Store         string `arg:"--store" help:"column store backend: badger or cassandra"`
	LogLevel      string `arg:"--log-level" help:"log level: fatal error warn info debug"`
}

func (flags) Version() string { return "hiitrack " + version.V }

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(1)
	}
	if config.GetEnv() {
		config.PrintEnv(cfg, os.Stdout)
		os.Exit(0)
	}
	if config.HelpRequested() {
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	var f flags
	arg.MustParse(&f)
	if f.Port != 0 {
		cfg.Port = f.Port
	}
	if f.CassandraHost != "" {
		cfg.CassHost = f.CassandraHost
	}
	if f.CassandraPort != 0 {
		cfg.CassPort = f.CassandraPort
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.Store != "" {
		cfg.Store = f.Store
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	lg, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()
	lg.Info(
		"starting", zap.String("app", cfg.AppName),
		zap.String("version", version.V),
	)
	if cfg.Pprof {
		defer profile.Start(profile.MemProfile).Stop()
		go func() {
			if err := http.ListenAndServe("127.0.0.1:6060", nil); err != nil {
				lg.Error("pprof listener", zap.Error(err))
			}
		}()
	}

	c, cancel := context.Cancel(context.Bg())
	st, err := openStore(c, cancel, cfg, lg)
	if err != nil {
		lg.Fatal("opening store", zap.Error(err))
	}
	e := engine.New(st, lg)
	s := server.New(
		c, cancel, fmt.Sprintf("%s:%d", cfg.Listen, cfg.Port), e, st, lg,
	)
	interrupt.AddHandler(func() { s.Shutdown() })
	if err = s.Start(); err != nil {
		lg.Fatal("server terminated", zap.Error(err))
	}
}

func openStore(c context.T, cancel context.F, cfg *config.C,
	lg *zap.Logger) (store.Conn, error) {
	switch cfg.Store {
	case "badger", "":
		return badgerstore.New(c, cancel, cfg.DataDir, lg)
	case "cassandra":
		return cassandra.New(cassandra.Config{
			Host:              cfg.CassHost,
			Port:              cfg.CassPort,
			Keyspace:          cfg.Keyspace,
			ReplicationFactor: cfg.Replicas,
			Timeout:           cfg.StoreWait,
		}, lg)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}

func newLogger(level string) (lg *zap.Logger, err error) {
	lv, err := zapcore.ParseLevel(level)
	if err != nil {
		return
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lv)
	return zc.Build()
}
