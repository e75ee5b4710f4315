package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
	"github.com/roasbeef/marquee/internal/baselib/actor"
	"github.com/roasbeef/marquee/internal/browse"
	"github.com/roasbeef/marquee/internal/build"
	"github.com/roasbeef/marquee/internal/cache"
	"github.com/roasbeef/marquee/internal/fetcher"
	"github.com/roasbeef/marquee/internal/netclient"
	"github.com/roasbeef/marquee/internal/stream"
	"github.com/roasbeef/marquee/internal/upstream"
	"github.com/roasbeef/marquee/internal/web"
)

// sweepInterval is how often the durable cache tier is pruned.
const sweepInterval = time.Hour

// envAPIKey reads the upstream API key from the environment. TMDB_API_KEY
// is honored as a fallback since that is how the key usually already
// lives in people's shells.
func envAPIKey() string {
	if key := os.Getenv("MARQUEE_API_KEY"); key != "" {
		return key
	}

	return os.Getenv("TMDB_API_KEY")
}

func main() {
	var (
		apiKey   = flag.String("api-key", envAPIKey(), "Upstream API key (default: $MARQUEE_API_KEY)")
		baseURL  = flag.String("base-url", "", "Upstream API base URL (empty for the default)")
		webAddr  = flag.String("web", ":8475", "Web server address")
		dataDir  = flag.String("data-dir", "~/.marquee", "Directory for cache and logs")
		logLevel = flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	)
	flag.Parse()

	if *apiKey == "" {
		log.Fatal("An upstream API key is required " +
			"(--api-key or $MARQUEE_API_KEY)")
	}

	// Expand home directory.
	dir := *dataDir
	if len(dir) > 0 && dir[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		dir = home + dir[1:]
	}

	// Set up dual-stream logging: console plus a rotating file.
	logWriter := build.NewRotatingLogWriter()
	rotatorCfg := build.DefaultLogRotatorConfig()
	rotatorCfg.LogDir = filepath.Join(dir, "logs")
	if err := logWriter.InitLogRotator(rotatorCfg); err != nil {
		log.Fatalf("Failed to init log rotator: %v", err)
	}
	defer logWriter.Close()

	handlers := build.NewHandlerSet(
		btclog.NewDefaultHandler(os.Stdout),
		btclog.NewDefaultHandler(logWriter),
	)

	level, ok := btclogv1.LevelFromString(*logLevel)
	if !ok {
		log.Fatalf("Unknown log level %q", *logLevel)
	}
	handlers.SetLevel(level)

	subLogger := func(tag string) btclog.Logger {
		return btclog.NewSLogger(handlers.SubSystem(tag))
	}

	actor.UseLogger(subLogger(actor.Subsystem))
	netclient.UseLogger(subLogger(netclient.Subsystem))
	cache.UseLogger(subLogger(cache.Subsystem))
	fetcher.UseLogger(subLogger(fetcher.Subsystem))
	stream.UseLogger(subLogger(stream.Subsystem))
	browse.UseLogger(subLogger(browse.Subsystem))
	web.UseLogger(subLogger(web.Subsystem))

	mainLog := subLogger("MARQ")

	// Network client with deduplication, backoff, and bounded concurrency.
	netClient := netclient.New(netclient.Config{})
	defer netClient.Stop()

	// Two-tier cache under the data directory.
	tieredCache, err := cache.New(cache.Config{
		Dir: filepath.Join(dir, "cache"),
	})
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}

	routes := upstream.NewRoutes(*baseURL, *apiKey)
	contentFetcher := fetcher.New(fetcher.Config{
		Routes: routes,
		Client: netClient,
		Cache:  tieredCache,
	})

	// The web server is created after the coordinator but receives its
	// snapshots, so the hook goes through an atomic pointer.
	var webServer atomic.Pointer[web.Server]

	coord := stream.New(stream.Config{
		Fetcher: contentFetcher,
		OnUpdate: func(snap stream.Snapshot) {
			if s := webServer.Load(); s != nil {
				s.PublishSnapshot(snap)
			}
		},
	})
	defer coord.Stop()

	// Actor system hosting the browse service.
	actorSystem := actor.NewActorSystem()
	defer actorSystem.Shutdown(context.Background())

	browseRef := browse.ServiceKey.Spawn(
		actorSystem, "browse-service",
		browse.NewService(coord, contentFetcher, netClient, tieredCache),
	)
	mainLog.Infof("Browse service actor started")

	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		mainLog.Infof("Shutting down...")
		cancel()
	}()

	// Prune the durable cache tier periodically.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := tieredCache.Sweep(
					cache.DefaultSweepAge,
				)
				if err != nil {
					mainLog.Warnf("Cache sweep failed: %v",
						err)
					continue
				}
				if removed > 0 {
					mainLog.Infof("Cache sweep removed "+
						"%d entries", removed)
				}
			}
		}
	}()

	// Start the web server.
	webCfg := web.DefaultConfig()
	webCfg.Addr = *webAddr

	server := web.NewServer(webCfg, browseRef)
	webServer.Store(server)

	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			mainLog.Errorf("Web server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLog.Errorf("Web server shutdown error: %v", err)
	}
}
