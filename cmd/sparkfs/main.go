// Package main is the sparkfs demo CLI: it links directories and files
// into a workspace over local storage, prints the resulting tree, and can
// watch linked trees for external changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/sparklabs/sparkfs/internal/dialog"
	"github.com/sparklabs/sparkfs/internal/location"
	"github.com/sparklabs/sparkfs/internal/prefs"
	"github.com/sparklabs/sparkfs/internal/resource"
	"github.com/sparklabs/sparkfs/internal/storage"
	"github.com/sparklabs/sparkfs/internal/watcher"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	root      string
	prefsPath string
	newFolder string
	watch     bool
	verbose   bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	logger, err := newLogger(opts.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	provider, err := storage.NewLocalProvider(opts.root)
	if err != nil {
		logger.Error("opening storage root", zap.String("root", opts.root), zap.Error(err))
		return 1
	}

	if dir := filepath.Dir(opts.prefsPath); dir != "." {
		_ = os.MkdirAll(dir, 0755)
	}
	store := prefs.NewFileStore(opts.prefsPath)
	ws := resource.NewWorkspace(provider, resource.WithPrefs(store))
	defer ws.Close()

	if err := ws.Initialize(ctx); err != nil {
		logger.Error("restoring session", zap.Error(err))
		return 1
	}

	for _, arg := range flag.Args() {
		entry, ok := provider.EntryAt(arg)
		if !ok {
			logger.Error("no such entry under root", zap.String("path", arg))
			return 1
		}
		if _, err := ws.Link(ctx, entry); err != nil {
			logger.Error("linking entry", zap.String("path", arg), zap.Error(err))
			return 1
		}
	}

	if opts.newFolder != "" {
		if code := createProjectFolder(ctx, provider, store, logger, opts.newFolder); code != 0 {
			return code
		}
	}

	printTree(ws)

	if opts.watch {
		return watchChanges(ws, logger)
	}
	return 0
}

func createProjectFolder(ctx context.Context, provider storage.Provider, store prefs.Store, logger *zap.Logger, name string) int {
	mgr := location.NewManager(provider, store, dialog.NewConsole(provider))
	if err := mgr.Restore(ctx); err != nil {
		logger.Error("restoring project location", zap.Error(err))
		return 1
	}

	loc, err := mgr.CreateFolder(ctx, name)
	if err != nil {
		logger.Error("creating project folder", zap.String("name", name), zap.Error(err))
		return 1
	}
	if loc == nil {
		logger.Info("project folder creation cancelled")
		return 0
	}

	path, err := loc.DisplayPath(ctx)
	if err != nil {
		path = loc.Name()
	}
	fmt.Printf("created %s\n", path)
	return 0
}

func printTree(ws *resource.Workspace) {
	for _, child := range ws.Children() {
		printResource(child, 0)
	}
}

func printResource(r resource.Resource, depth int) {
	fmt.Printf("%s%s [%s]\n", strings.Repeat("  ", depth), r.Name(), r.Kind())
	if c, ok := r.(resource.Container); ok {
		for _, child := range c.Children() {
			printResource(child, depth+1)
		}
	}
}

func watchChanges(ws *resource.Workspace, logger *zap.Logger) int {
	w, err := watcher.New(watcher.WithLogger(logger))
	if err != nil {
		logger.Error("starting watcher", zap.Error(err))
		return 1
	}
	defer func() { _ = w.Close() }()

	for _, p := range ws.Projects() {
		pather, ok := p.Entry().(storage.Pather)
		if !ok {
			continue
		}
		if err := w.WatchRecursive(pather.Path()); err != nil {
			logger.Warn("watching project", zap.String("project", p.Name()), zap.Error(err))
		}
	}

	stop := watcher.Bind(ws, w)
	defer stop()

	sub := ws.Subscribe()
	defer ws.Unsubscribe(sub)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-signals:
			return 0
		case ev, ok := <-sub.C():
			if !ok {
				return 0
			}
			logger.Info("workspace change",
				zap.String("type", ev.Type.String()),
				zap.String("kind", ev.Resource.Kind().String()),
				zap.String("name", ev.Resource.Name()))
		}
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.root, "root", ".", "Storage root directory")
	flag.StringVar(&opts.prefsPath, "prefs", defaultPrefsPath(), "Preference file path")
	flag.StringVar(&opts.newFolder, "new", "", "Create a project folder with this base name")
	flag.BoolVar(&opts.watch, "watch", false, "Watch linked projects for external changes")
	flag.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("sparkfs %s (%s)\n", version, commit)
		os.Exit(0)
	}
	return opts
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".sparkfs.toml"
	}
	return filepath.Join(dir, "sparkfs", "prefs.toml")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}
