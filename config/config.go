// Package config provides a go-simpler.org/env configuration table and
// helpers for printing and composing the key/value lists stored in .env
// files.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go-simpler.org/env"

	"hiitrack.dev/utils/apputil"
	"hiitrack.dev/version"
)

// C is the tracker configuration. Values are read from the environment if
// present; a .env file found in the config dir overrides anything else.
type C struct {
	AppName   string `env:"HIITRACK_APP_NAME" default:"hiitrack"`
	Config    string `env:"HIITRACK_CONFIG_DIR" usage:"location for the configuration file, which has the name '.env' and is a standard KEY=value<newline>... list"`
	DataDir   string `env:"HIITRACK_DATA_DIR" usage:"storage location for the badger store"`
	Listen    string `env:"HIITRACK_LISTEN" default:"0.0.0.0" usage:"network listen address"`
	Port      int    `env:"HIITRACK_PORT" default:"8080" usage:"port to listen on"`
	Store     string `env:"HIITRACK_STORE" default:"badger" usage:"column store backend: badger or cassandra"`
	CassHost  string `env:"HIITRACK_CASSANDRA_HOST" default:"127.0.0.1" usage:"cassandra contact point"`
	CassPort  int    `env:"HIITRACK_CASSANDRA_PORT" default:"9042" usage:"cassandra native protocol port"`
	Keyspace  string `env:"HIITRACK_KEYSPACE" default:"hiitrack" usage:"cassandra keyspace, created on startup if missing"`
	Replicas  int    `env:"HIITRACK_REPLICATION_FACTOR" default:"1" usage:"keyspace replication factor"`
	StoreWait time.Duration `env:"HIITRACK_STORE_TIMEOUT" default:"5s" usage:"per-call store timeout"`
	LogLevel  string `env:"HIITRACK_LOG_LEVEL" default:"info" usage:"log level: fatal error warn info debug"`
	Pprof     bool   `env:"HIITRACK_PPROF" default:"false" usage:"enable pprof on 127.0.0.1:6060"`
}

// New creates a new config.C from the process environment, then from the
// .env file if one exists.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, &env.Options{SliceSep: ","}); err != nil {
		return
	}
	if cfg.Config == "" {
		cfg.Config = filepath.Join(xdg.ConfigHome, cfg.AppName)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, cfg.AppName)
	}
	envPath := filepath.Join(cfg.Config, ".env")
	if apputil.FileExists(envPath) {
		var src envFile
		if src, err = loadEnvFile(envPath); err != nil {
			return
		}
		if err = env.Load(
			cfg, &env.Options{SliceSep: ",", Source: src},
		); err != nil {
			return
		}
	}
	return
}

// envFile is a go-simpler.org/env Source backed by a parsed .env file.
type envFile map[string]string

func (e envFile) LookupEnv(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// loadEnvFile parses KEY=value lines; blank lines and # comments are
// skipped, values may be single or double quoted.
func loadEnvFile(path string) (e envFile, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	e = envFile{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if len(v) > 1 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		e[strings.TrimSpace(k)] = v
	}
	return
}

// HelpRequested returns true if any of the common types of help invocation
// are found as the first command line parameter/flag.
func HelpRequested() (help bool) {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "help", "-h", "--h", "-help", "--help", "?":
			help = true
		}
	}
	return
}

// GetEnv processes os.Args to detect a request for printing the current
// settings as a list of environment variable key/values.
func GetEnv() (requested bool) {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "env":
			requested = true
		}
	}
	return
}

// KV is a key/value pair.
type KV struct{ Key, Value string }

// KVSlice is a collection of key/value pairs.
type KVSlice []KV

func (kv KVSlice) Len() int           { return len(kv) }
func (kv KVSlice) Less(i, j int) bool { return kv[i].Key < kv[j].Key }
func (kv KVSlice) Swap(i, j int)      { kv[i], kv[j] = kv[j], kv[i] }

// EnvKV turns a struct with `env` keys (used with go-simpler/env) into a
// standard formatted environment variable key/value pair list, one per line.
// Note you must dereference a pointer type to use this.
func EnvKV(cfg any) (m KVSlice) {
	t := reflect.TypeOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		k := t.Field(i).Tag.Get("env")
		v := reflect.ValueOf(cfg).Field(i).Interface()
		var val string
		switch v.(type) {
		case string:
			val = v.(string)
		case int, bool, time.Duration:
			val = fmt.Sprint(v)
		case []string:
			arr := v.([]string)
			if len(arr) > 0 {
				val = strings.Join(arr, ",")
			}
		}
		// this can happen with embedded structs
		if k == "" {
			continue
		}
		m = append(m, KV{k, val})
	}
	return
}

// PrintEnv renders the key/values of a config.C to a provided io.Writer.
func PrintEnv(cfg *C, printer io.Writer) {
	kvs := EnvKV(*cfg)
	sort.Sort(kvs)
	for _, v := range kvs {
		_, _ = fmt.Fprintf(printer, "%s=%s\n", v.Key, v.Value)
	}
}

// PrintHelp outputs a help text listing the configuration options and
// default values to a provided io.Writer (usually os.Stderr or os.Stdout).
func PrintHelp(cfg *C, printer io.Writer) {
	_, _ = fmt.Fprintf(
		printer,
		"%s %s\n\n", cfg.AppName, version.V,
	)

	_, _ = fmt.Fprintf(
		printer,
		"Environment variables that configure %s:\n\n", cfg.AppName,
	)

	env.Usage(cfg, printer, &env.Options{SliceSep: ","})
	_, _ = fmt.Fprintf(
		printer,
		"\nCLI parameter 'help' also prints this information\n"+
			"\n.env file found at the path %s will be automatically "+
			"loaded for configuration.\nenvironment overrides it and "+
			"you can also edit the file to set configuration options\n\n"+
			"use the parameter 'env' to print out the current "+
			"configuration to the terminal\n\n"+
			"set the environment using\n\n\t%s env > %s/.env\n",
		cfg.Config, os.Args[0], cfg.Config,
	)

	fmt.Fprintf(printer, "\ncurrent configuration:\n\n")
	PrintEnv(cfg, printer)
	fmt.Fprintln(printer)
}
