package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"floatshelf/internal/adapter/script"
	"floatshelf/internal/domain"
	"floatshelf/internal/infra/config"
	"floatshelf/internal/usecase/history"
	"floatshelf/internal/usecase/shelf"
)

func runShelf() error {
	if len(os.Args) < 3 {
		printShelfUsage()
		return nil
	}

	switch os.Args[2] {
	case "list":
		return runShelfList()
	case "add":
		if len(os.Args) < 4 {
			return fmt.Errorf("usage: floatshelf shelf add <name>")
		}
		return runShelfAdd(os.Args[3])
	case "delete":
		if len(os.Args) < 4 {
			return fmt.Errorf("usage: floatshelf shelf delete <name>")
		}
		return runShelfDelete(os.Args[3])
	case "rename":
		if len(os.Args) < 5 {
			return fmt.Errorf("usage: floatshelf shelf rename <old> <new>")
		}
		return runShelfRename(os.Args[3], os.Args[4])
	case "default":
		if len(os.Args) < 4 {
			return fmt.Errorf("usage: floatshelf shelf default <name>")
		}
		return runShelfDefault(os.Args[3])
	case "select":
		if len(os.Args) < 4 {
			return fmt.Errorf("usage: floatshelf shelf select <name>")
		}
		return runShelfSelect(os.Args[3])
	default:
		return fmt.Errorf("unknown shelf subcommand: %s\n\nRun 'floatshelf shelf' for usage", os.Args[2])
	}
}

func printShelfUsage() {
	fmt.Println(`floatshelf shelf - Manage shelves

USAGE:
    floatshelf shelf <COMMAND>

COMMANDS:
    list                 List shelves with button counts
    add <name>           Create an empty shelf
    delete <name>        Delete a shelf and its buttons
    rename <old> <new>   Rename a shelf
    default <name>       Make a shelf the startup default
    select <name>        Switch the viewed shelf`)
}

func runShelfList() error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBUTTONS\tDEFAULT")
	for _, name := range mgr.ShelfNames() {
		buttons, err := mgr.Buttons(name)
		if err != nil {
			return err
		}
		def := ""
		if name == mgr.DefaultShelf() {
			def = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, len(buttons), def)
	}
	return w.Flush()
}

func runShelfAdd(name string) error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	if err := mgr.CreateShelf(context.Background(), name); err != nil {
		return err
	}
	fmt.Printf("Shelf %q created.\n", name)
	return nil
}

func runShelfDelete(name string) error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	if err := mgr.DeleteShelf(context.Background(), name); err != nil {
		return err
	}
	fmt.Printf("Shelf %q deleted.\n", name)
	return nil
}

func runShelfRename(oldName, newName string) error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	if err := mgr.RenameShelf(context.Background(), oldName, newName); err != nil {
		return err
	}
	fmt.Printf("Shelf %q renamed to %q.\n", oldName, newName)
	return nil
}

func runShelfDefault(name string) error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	if err := mgr.SetDefaultShelf(context.Background(), name); err != nil {
		return err
	}
	fmt.Printf("Shelf %q is now the default.\n", name)
	return nil
}

func runShelfSelect(name string) error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	if err := mgr.SetCurrentShelf(context.Background(), name); err != nil {
		return err
	}
	fmt.Printf("Shelf %q selected.\n", name)
	return nil
}

// openManager loads config and builds a shelf manager over the persisted
// collection for one-shot commands. The closer releases the history store
// when one was opened.
func openManager() (*shelf.Manager, *config.Config, func(), error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}

	log := slogDiscard()
	store, err := shelf.NewFileStore(cfg.Store.Dir, cfg.Store.File, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: %w", err)
	}

	runners := script.NewRegistry()
	if err := runners.Register(script.NewJSRunner(cfg.Script.Timeout, log)); err != nil {
		return nil, nil, nil, fmt.Errorf("runners: %w", err)
	}
	if err := runners.Register(script.NewLuaRunner(cfg.Script.Timeout, log)); err != nil {
		return nil, nil, nil, fmt.Errorf("runners: %w", err)
	}

	// An unreadable history store must not block one-shot commands; runs
	// simply go unrecorded, same as when history is disabled.
	var hist domain.RunHistory
	closer := func() {}
	if cfg.History.Enabled {
		if hs, err := history.NewSQLiteStore(cfg.History.File); err == nil {
			hist = hs
			closer = func() { hs.Close() }
		}
	}

	mgr := shelf.NewManager(store, runners, hist, nil, log)
	if err := mgr.Load(context.Background()); err != nil {
		closer()
		return nil, nil, nil, err
	}
	return mgr, cfg, closer, nil
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
