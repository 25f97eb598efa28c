package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"flickrgallery/config"
	"flickrgallery/connectivity"
	"flickrgallery/feed"
	"flickrgallery/gallery"
	"flickrgallery/snapshot"
)

const envConfigPath = "FLICKRGALLERY_CONFIG"

const (
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiReset  = "\x1b[0m"
)

type options struct {
	configPath string
	refresh    bool
	force      bool
	clear      bool
	watch      bool
	showConfig bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("flickrgallery", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (default $"+envConfigPath+")")
	fs.BoolVar(&opts.refresh, "refresh", false, "run a manual refresh after activation")
	fs.BoolVar(&opts.force, "force", false, "save every non-empty fetch on manual refresh")
	fs.BoolVar(&opts.clear, "clear", false, "clear the cached gallery and exit")
	fs.BoolVar(&opts.watch, "watch", false, "stay active and re-probe connectivity until interrupted")
	fs.BoolVar(&opts.showConfig, "show-config", false, "print the effective configuration")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

// Purpose: Report whether stdout is a TTY for colour gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: main rendering setup.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Load configuration from the flag, env, or defaults.
// Key aspects: Flag wins over env; neither means built-in defaults.
// Upstream: main startup.
// Downstream: config.Load.
func loadGalleryConfig(flagPath string) (*config.Config, error) {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfigPath))
	}
	return config.Load(path)
}

// Purpose: Program entrypoint; wires config, storage, feed, and the screen.
// Key aspects: Exits non-zero only on setup failures; refresh problems are
// reported in the rendered view.
// Upstream: OS process start.
// Downstream: run.
func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(opts options) error {
	cfg, err := loadGalleryConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	fanout, logErr := setupLogging(cfg.Logging, os.Stderr)
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()
	if logErr != nil {
		log.Printf("Logging: file sink disabled: %v", logErr)
	}
	logger := log.Default()
	if opts.showConfig {
		cfg.Print(os.Stdout)
	}

	store, err := snapshot.Open(snapshot.Options{
		Backend:          cfg.Store.Backend,
		Path:             cfg.Store.Path,
		PreflightTimeout: cfg.Store.PreflightTimeout(),
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("open %s store at %s: %w", cfg.Store.Backend, cfg.Store.Path, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Store: close failed: %v", err)
		}
	}()

	client := feed.NewClient(feed.Config{
		Endpoint:  cfg.Feed.Endpoint,
		APIKey:    cfg.Feed.APIKey,
		PerPage:   cfg.Feed.PerPage,
		Page:      cfg.Feed.Page,
		Timeout:   cfg.Feed.RequestTimeout(),
		UserAgent: cfg.Feed.UserAgent,
	}, nil, logger)
	if cfg.Feed.APIKey == "" {
		log.Printf("Feed: no api key configured; set feed.api_key or %s", config.EnvAPIKey)
	}

	manager := gallery.NewManager(gallery.Config{
		CacheKey:      cfg.Cache.CacheKey,
		TimestampKey:  cfg.Cache.TimestampKey,
		Expiry:        cfg.Cache.Expiry(),
		RejectOnError: cfg.Cache.RejectOnError,
		CycleTimeout:  cfg.Screen.CycleTimeout(),
	}, store, client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.clear {
		if err := manager.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Cache cleared.")
		return nil
	}

	var probeClient *http.Client
	if cfg.Connectivity.FollowRedirects {
		probeClient = &http.Client{}
	}
	prober := connectivity.NewProber(cfg.Connectivity.Target, cfg.Connectivity.ProbeTimeout(), probeClient, logger)
	screen := gallery.NewScreen(manager, prober, gallery.ScreenConfig{
		ProbeInterval:      cfg.Connectivity.ProbeInterval(),
		CycleTimeout:       cfg.Screen.CycleTimeout(),
		ForceManualRefresh: cfg.Screen.ForceManualRefresh || opts.force,
	}, logger)

	r := &renderer{w: os.Stdout, color: isStdoutTTY(), now: manager.Config().Now}
	var onUpdate func(gallery.View)
	if opts.watch {
		onUpdate = r.render
	}
	r.render(screen.Activate(ctx, onUpdate))
	screen.Wait()
	if !opts.watch {
		r.render(screen.View())
	}

	if opts.refresh {
		view, err := screen.Refresh(ctx)
		if err != nil {
			log.Printf("Gallery: manual refresh failed: %v", err)
		} else {
			r.render(view)
		}
	}

	if opts.watch {
		<-ctx.Done()
		log.Printf("Gallery: shutting down")
	}
	screen.Deactivate()
	screen.Wait()
	return nil
}
