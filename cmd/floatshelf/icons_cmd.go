package main

import (
	"fmt"
	"os"
	"strings"

	"floatshelf/internal/adapter/icon"
	"floatshelf/internal/infra/config"
)

func runIcons() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	query := ""
	if len(os.Args) >= 3 && !strings.HasPrefix(os.Args[2], "-") {
		query = os.Args[2]
	}

	cat := icon.NewCatalog(slogDiscard(), cfg.Icons.Paths...)
	total := cat.Scan()

	names := cat.Names()
	if query != "" {
		names = cat.Filter(query)
	}

	if len(names) == 0 {
		if total == 0 {
			fmt.Println("No icons found on the search path.")
		} else {
			fmt.Printf("No icons match %q (%d indexed).\n", query, total)
		}
		return nil
	}

	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
