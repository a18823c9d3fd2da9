package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"floatshelf/internal/infra/config"
	"floatshelf/internal/usecase/history"
)

func runHistory() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !cfg.History.Enabled {
		fmt.Println("Run history is disabled.")
		return nil
	}

	limit := 20
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			limit = n
		}
	}

	hs, err := history.NewSQLiteStore(cfg.History.File)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer hs.Close()

	recs, err := hs.Recent(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if len(recs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSHELF\tLABEL\tKIND\tRESULT")
	for _, r := range recs {
		result := "ok"
		if !r.OK {
			result = "error: " + truncate(r.Error, 40)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Time.Local().Format("2006-01-02 15:04:05"), r.Shelf, r.Label, r.Kind, result)
	}
	return w.Flush()
}
