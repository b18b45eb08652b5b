package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/client"
	"storefront/internal/clientcache"
	"storefront/internal/config"
	"storefront/internal/observability"
	"storefront/internal/reconcile"
	"storefront/internal/shopper"
)

func main() {
	revalidate := flag.Bool("revalidate", false, "re-check cached products against the catalog when signing in")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: storefront-cli [flags] <command> [args]\n\n%s\nflags:\n", usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	observability.InitLoggerTo(os.Stderr, cfg.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openCache(cfg)
	if err != nil {
		slog.Error("failed to open local cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeBackend()

	products := catalog.NewClient(cfg.CatalogURL)
	engine := reconcile.NewEngine()
	if *revalidate {
		engine = reconcile.NewEngine(reconcile.WithCatalog(products))
	}

	sh := shopper.New(
		client.New(cfg.APIURL),
		clientcache.New(backend, clientcache.WithDebounce(cfg.SaveDebounce)),
		shopper.WithCatalog(products),
		shopper.WithEngine(engine),
		shopper.WithSyncInterval(cfg.SyncInterval),
	)

	err = run(ctx, sh, flag.Args(), os.Stdout)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if closeErr := sh.Close(closeCtx); closeErr != nil {
		slog.Warn("failed to save local state", slog.String("error", closeErr.Error()))
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		closeBackend()
		os.Exit(1)
	}
}

func openCache(cfg *config.ClientConfig) (clientcache.Backend, func(), error) {
	if cfg.CacheBackend == config.BackendMemory {
		return clientcache.NewMemoryBackend(), func() {}, nil
	}

	db, err := clientcache.OpenSQLite(cfg.CachePath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}
