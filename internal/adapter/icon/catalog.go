package icon

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"floatshelf/internal/domain"
)

// The host environment supplies icon assets through two path-list variables,
// searched in order. Entries use the platform path-list separator.
const (
	EnvIconPath   = "FLOATSHELF_ICON_PATH"
	EnvPixmapPath = "FLOATSHELF_PIXMAP_PATH"
)

// imageExts are the icon file types the browser offers.
var imageExts = []string{".png", ".svg", ".bmp", ".jpg", ".jpeg", ".xpm"}

// Catalog indexes icon files found on the configured and environment-driven
// search paths. Basenames are unique: the first directory on the lists that
// provides a name wins, mirroring PATH lookup.
type Catalog struct {
	logger *slog.Logger
	extra  []string // configured dirs, searched before the env lists

	mu    sync.RWMutex
	names []string
	paths map[string]string
}

// NewCatalog creates an empty catalog. Call Scan to populate it. Extra
// directories are searched before the environment lists.
func NewCatalog(logger *slog.Logger, extra ...string) *Catalog {
	return &Catalog{
		logger: logger,
		extra:  extra,
		paths:  make(map[string]string),
	}
}

// SearchDirs returns the directories on the two environment search lists, in
// lookup order.
func SearchDirs() []string {
	var dirs []string
	for _, env := range []string{EnvIconPath, EnvPixmapPath} {
		for _, dir := range filepath.SplitList(os.Getenv(env)) {
			if dir != "" {
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// Scan rebuilds the index from the search paths and returns how many icons
// it found. Directories that do not exist are skipped.
func (c *Catalog) Scan() int {
	paths := make(map[string]string)
	for _, dir := range append(append([]string{}, c.extra...), SearchDirs()...) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				c.logger.Warn("cannot read icon dir", "dir", dir, "error", err)
			}
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if !isImage(name) {
				continue
			}
			if _, ok := paths[name]; ok {
				continue
			}
			paths[name] = filepath.Join(dir, name)
		}
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	c.mu.Lock()
	c.names = names
	c.paths = paths
	c.mu.Unlock()

	c.logger.Info("icon catalog scanned", "icons", len(names))
	return len(names)
}

// Names returns all icon basenames in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Filter returns the basenames containing the query, case-insensitively. An
// empty query returns everything.
func (c *Catalog) Filter(query string) []string {
	if query == "" {
		return c.Names()
	}
	query = strings.ToLower(query)

	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, name := range c.names {
		if strings.Contains(strings.ToLower(name), query) {
			out = append(out, name)
		}
	}
	return out
}

// Resolve maps an icon basename to its full path.
func (c *Catalog) Resolve(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path, ok := c.paths[name]
	if !ok {
		return "", domain.NewDomainError("Catalog.Resolve", domain.ErrNotFound, name)
	}
	return path, nil
}

func isImage(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range imageExts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
