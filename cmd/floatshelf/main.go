package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"floatshelf/internal/adapter/gateway"
	"floatshelf/internal/adapter/icon"
	"floatshelf/internal/adapter/script"
	"floatshelf/internal/domain"
	"floatshelf/internal/infra/config"
	"floatshelf/internal/infra/logger"
	"floatshelf/internal/infra/tracer"
	"floatshelf/internal/usecase/eventbus"
	"floatshelf/internal/usecase/history"
	"floatshelf/internal/usecase/shelf"
	"floatshelf/internal/usecase/window"
	"floatshelf/internal/version"
)

func main() {
	// Handle help and version flags first
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		case "--version", "-v", "version":
			fmt.Println("floatshelf " + version.String())
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "shelf":
		if err := runShelf(); err != nil {
			fmt.Fprintf(os.Stderr, "shelf: %v\n", err)
			os.Exit(1)
		}
	case "button":
		if err := runButton(); err != nil {
			fmt.Fprintf(os.Stderr, "button: %v\n", err)
			os.Exit(1)
		}
	case "icons":
		if err := runIcons(); err != nil {
			fmt.Fprintf(os.Stderr, "icons: %v\n", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(); err != nil {
			fmt.Fprintf(os.Stderr, "history: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := runConfigCmd(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'floatshelf --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`floatshelf - Floating command shelves with scriptable buttons

USAGE:
    floatshelf [COMMAND] [FLAGS]

COMMANDS:
    shelf       Manage shelves
                Subcommands: list, add, delete, rename, default, select
    button      Manage shelf buttons
                Subcommands: list, add, edit, move, delete, run
    icons       List icons visible on the search path
    history     Show recent button runs
    config      Config helpers
                Subcommands: encrypt
    doctor      Run health checks on your setup
    version     Print the version

    (no command) - Run the shelf service with existing config

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ~/.floatshelf/config.yaml)

CONFIGURATION:
    Config file: ~/.floatshelf/config.yaml (optional, defaults apply without it)
    Environment: FLOATSHELF_* variables override config

EXAMPLES:
    floatshelf                                      # Run the shelf service
    floatshelf shelf add Renders                    # Create a shelf
    floatshelf button add Renders Play 'print(40+2)'
    floatshelf button run Renders Play              # Run a button by label
    floatshelf history 10                           # Last 10 runs
    floatshelf doctor                               # Check system health`)
}

func run() error {
	// 1. Config
	cfgPath := configPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Shelf store
	store, err := shelf.NewFileStore(cfg.Store.Dir, cfg.Store.File, log)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	// 4. Script runners
	runners := script.NewRegistry()
	if err := runners.Register(script.NewJSRunner(cfg.Script.Timeout, log)); err != nil {
		return fmt.Errorf("runners: %w", err)
	}
	if err := runners.Register(script.NewLuaRunner(cfg.Script.Timeout, log)); err != nil {
		return fmt.Errorf("runners: %w", err)
	}

	// 5. Icon catalog
	icons := icon.NewCatalog(log, cfg.Icons.Paths...)
	icons.Scan()

	// 6. Run history
	var hist domain.RunHistory
	var histStore *history.SQLiteStore
	if cfg.History.Enabled {
		histStore, err = history.NewSQLiteStore(cfg.History.File)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		defer histStore.Close()
		hist = histStore
	}

	// 7. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 8. Shelf manager
	mgr := shelf.NewManager(store, runners, hist, bus, log)
	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("shelves: %w", err)
	}

	// 9. Window manager
	win := window.NewManager(bus, log, cfg.Window.TickInterval)

	// 10. Gateway
	var gw *gateway.Server
	if cfg.Gateway.Enabled {
		entries := make([]gateway.TokenEntry, len(cfg.Gateway.Auth.Tokens))
		for i, t := range cfg.Gateway.Auth.Tokens {
			entries[i] = gateway.TokenEntry{Token: t.Token, Name: t.Name}
		}
		gw = gateway.NewServer(bus, gateway.NewStaticTokenAuth(entries), cfg.Gateway.Addr, log)
		gw.SetRateLimit(cfg.Gateway.RatePerMinute, cfg.Gateway.Burst)

		deps := gateway.HandlerDeps{
			Shelves: mgr,
			Window:  win,
			History: hist,
			Icons:   icons,
			Bus:     bus,
			Logger:  log,
		}
		gateway.RegisterDefaultHandlers(gw, deps)

		kinds := runners.Kinds()
		kindNames := make([]string, len(kinds))
		for i, k := range kinds {
			kindNames[i] = string(k)
		}
		gateway.RegisterRESTHandlers(gw, deps, kindNames)
	}

	// 11. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 12. Background loops
	if histStore != nil {
		histStore.StartPruneLoop(ctx, cfg.History.PruneInterval, cfg.History.Keep, log)
	}
	win.StartTickLoop(ctx)

	if gw != nil {
		go func() {
			if err := gw.Start(ctx); err != nil {
				log.Error("gateway server error", "error", err)
			}
		}()
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := gw.Stop(stopCtx); err != nil {
				log.Error("gateway stop error", "error", err)
			}
		}()
	}

	// 13. Open the shelf window and wait
	win.Open(ctx)

	log.Info("floatshelf started",
		"version", version.String(),
		"shelves", len(mgr.ShelfNames()),
		"default", mgr.DefaultShelf(),
		"runners", len(runners.Kinds()),
		"icons", len(icons.Names()),
		"history", cfg.History.Enabled,
		"gateway", cfg.Gateway.Enabled,
	)

	<-ctx.Done()
	log.Info("floatshelf shutting down")
	return nil
}

func configPath() string {
	// Check --config flag in os.Args.
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("FLOATSHELF_CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath()
}
