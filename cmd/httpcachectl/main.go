// Command httpcachectl is a demo client that drives a request or a list of
// requests through the interceptor pipeline with the RFC 9111 cache
// installed, printing the resulting Cache-Status header for each.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ericselin/httpintercept/cache"
	"github.com/ericselin/httpintercept/cache/sqlitejournal"
	"github.com/ericselin/httpintercept/cacheupdate"
	"github.com/ericselin/httpintercept/pipeline"
)

var (
	configFilenameFlag string
	urlFlag            string
	journalKindFlag    string
	journalPathFlag    string
	storeKindFlag      string
	storeRootFlag      string
	compressFlag       bool
	maxSizeFlag        int64
	sharedFlag         bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to YAML config file (overrides other flags)")
	flag.StringVar(&urlFlag, "url", "", "URL to request (repeatable requests belong in -config)")
	flag.StringVar(&journalKindFlag, "journal", "memory", "Journal backend: memory, binary, or sqlite")
	flag.StringVar(&journalPathFlag, "journal-path", "httpcache.journal", "Path for the binary or sqlite journal")
	flag.StringVar(&storeKindFlag, "store", "memory", "Body store backend: memory or fs")
	flag.StringVar(&storeRootFlag, "store-root", "httpcache-blobs", "Root directory for the fs body store")
	flag.BoolVar(&compressFlag, "compress", false, "Compress fs body store blobs with zstd")
	flag.Int64Var(&maxSizeFlag, "max-size", 0, "Maximum total cache size in bytes (0 disables eviction)")
	flag.BoolVar(&sharedFlag, "shared", false, "Behave as a shared (multi-user) cache")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stderr)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()
	setupLogging()

	config := Config{
		Requests: []string{urlFlag},
		Journal:  JournalConfig{Kind: journalKindFlag, Path: journalPathFlag},
		Store:    StoreConfig{Kind: storeKindFlag, Root: storeRootFlag, Compress: compressFlag},
		MaxSize:  maxSizeFlag,
		Shared:   sharedFlag,
	}
	if configFilenameFlag != "" {
		fileConfig, err := loadConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Str("path", configFilenameFlag).Msg("could not read config file")
		}
		config = fileConfig
	}
	if len(config.Requests) == 0 || config.Requests[0] == "" {
		log.Fatal().Msg("please specify a URL, with -url or a config file's requests list")
	}

	journal, err := buildJournal(config.Journal)
	if err != nil {
		log.Fatal().Err(err).Msg("could not set up journal")
	}
	defer journal.Close()

	store, err := buildStore(config.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("could not set up body store")
	}

	cacheOpts := []cache.Option{cache.WithJournal(journal), cache.WithLogger(log.Logger)}
	if config.MaxSize > 0 {
		cacheOpts = append(cacheOpts, cache.WithMaxSize(config.MaxSize))
	}
	if config.Shared {
		cacheOpts = append(cacheOpts, cache.WithSharedCache())
	}
	httpCache := cache.New(store, cacheOpts...)
	defer httpCache.Dispose()

	updater := cacheupdate.New(nil, cacheupdate.WithLogger(log.Logger))
	engine := pipeline.New(http.DefaultTransport, []pipeline.Interceptor{
		pipeline.NewLoggingInterceptor(log.Logger),
		httpCache,
		updater,
	})
	defer engine.Close()
	updater.Bind(engine)

	for _, target := range config.Requests {
		runRequest(engine, target)
	}
}

func runRequest(engine *pipeline.Engine, target string) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		log.Error().Err(err).Str("url", target).Msg("could not build request")
		return
	}

	started := time.Now()
	res, err := engine.Do(context.Background(), req)
	if err != nil {
		log.Error().Err(err).Str("url", target).Msg("request failed")
		return
	}
	defer res.Body.Close()

	n, err := io.Copy(io.Discard, res.Body)
	if err != nil {
		log.Error().Err(err).Str("url", target).Msg("could not read response body")
		return
	}

	fmt.Printf("%-40s %d  %8d bytes  %10s  %s\n",
		target, res.StatusCode, n, time.Since(started).Round(time.Millisecond), res.Header.Get("Cache-Status"))
}

func buildJournal(c JournalConfig) (cache.Journal, error) {
	switch c.Kind {
	case "", "memory":
		return cache.NewMemJournal(), nil
	case "binary":
		return cache.OpenBinaryJournal(c.Path, log.Logger)
	case "sqlite":
		return sqlitejournal.Open(c.Path)
	default:
		return nil, fmt.Errorf("unknown journal kind %q", c.Kind)
	}
}

func buildStore(c StoreConfig) (cache.BodyStore, error) {
	switch c.Kind {
	case "", "memory":
		return cache.NewMemBodyStore(), nil
	case "fs":
		var opts []cache.FSBodyStoreOption
		if c.Compress {
			opts = append(opts, cache.WithCompression())
		}
		return cache.NewFSBodyStore(c.Root, opts...)
	default:
		return nil, fmt.Errorf("unknown store kind %q", c.Kind)
	}
}

func setupLogging() {
	logLevel := zerolog.InfoLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	outputs := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if logFilenameFlag != "" {
		f, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot open log file")
		}
		outputs = append(outputs, f)
	}
	log.Logger = log.Level(logLevel).
		Output(zerolog.MultiLevelWriter(outputs...)).
		With().Str("version", version).Logger()
}
