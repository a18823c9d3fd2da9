package domain

import (
	"context"
	"sort"
)

// ScriptKind identifies which embedded interpreter a button command targets.
type ScriptKind string

const (
	// ScriptJS is the primary command language.
	ScriptJS ScriptKind = "js"
	// ScriptLua is the secondary command language.
	ScriptLua ScriptKind = "lua"
)

const (
	// DefaultShelfName is the shelf that always exists and can be neither
	// renamed nor deleted.
	DefaultShelfName = "Default"

	// DefaultKey is the reserved persisted-document key holding the default
	// shelf name. Shelf names colliding with it are rejected.
	DefaultKey = "_default"

	// DefaultButtonIcon is assigned to new buttons created without an icon.
	DefaultButtonIcon = "commandButton.png"
)

// MoveDirection is the direction of a button swap within its shelf.
type MoveDirection int

const (
	MoveLeft  MoveDirection = -1
	MoveRight MoveDirection = +1
)

// ButtonSpec is a single command shortcut on a shelf. The ID is assigned when
// the button is created or loaded and identifies it for the lifetime of the
// process; it is not part of the persisted document.
type ButtonSpec struct {
	ID      string     `json:"-"`
	Label   string     `json:"label"`
	Command string     `json:"command"`
	Icon    string     `json:"icon"`
	Tooltip string     `json:"tooltip"`
	Kind    ScriptKind `json:"type"`
}

// Collection maps shelf names to ordered button sequences and carries the
// designated default shelf name. Shelf names are unique, non-empty, and
// case-sensitive.
type Collection struct {
	Shelves map[string][]*ButtonSpec
	Default string
}

// NewCollection returns the fresh collection used when no persisted document
// exists: a single empty "Default" shelf which is also the default.
func NewCollection() *Collection {
	return &Collection{
		Shelves: map[string][]*ButtonSpec{DefaultShelfName: {}},
		Default: DefaultShelfName,
	}
}

// Normalize repairs invariant violations after a raw document load: the
// "Default" shelf is created if absent, and a default pointer that names no
// existing shelf is reassigned. Reports whether anything changed.
func (c *Collection) Normalize() bool {
	changed := false
	if c.Shelves == nil {
		c.Shelves = make(map[string][]*ButtonSpec)
		changed = true
	}
	if _, ok := c.Shelves[DefaultShelfName]; !ok {
		c.Shelves[DefaultShelfName] = []*ButtonSpec{}
		changed = true
	}
	if _, ok := c.Shelves[c.Default]; !ok {
		c.Default = c.ReassignDefault()
		changed = true
	}
	return changed
}

// ReassignDefault picks the shelf the default pointer should fall back to:
// "Default" when present, otherwise an arbitrary remaining shelf (first in
// name order, so the choice is stable).
func (c *Collection) ReassignDefault() string {
	if _, ok := c.Shelves[DefaultShelfName]; ok {
		return DefaultShelfName
	}
	names := c.ShelfNames()
	if len(names) == 0 {
		return DefaultShelfName
	}
	return names[0]
}

// ShelfNames returns all shelf names in sorted order.
func (c *Collection) ShelfNames() []string {
	names := make([]string, 0, len(c.Shelves))
	for name := range c.Shelves {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindButton locates a button by ID within the named shelf. Returns the
// sequence index and the button, or (-1, nil) when not present.
func (c *Collection) FindButton(shelf, id string) (int, *ButtonSpec) {
	for i, b := range c.Shelves[shelf] {
		if b.ID == id {
			return i, b
		}
	}
	return -1, nil
}

// Clone returns a deep copy of the collection. Button IDs are preserved.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Shelves: make(map[string][]*ButtonSpec, len(c.Shelves)),
		Default: c.Default,
	}
	for name, buttons := range c.Shelves {
		seq := make([]*ButtonSpec, len(buttons))
		for i, b := range buttons {
			cp := *b
			seq[i] = &cp
		}
		out.Shelves[name] = seq
	}
	return out
}

// ShelfStore persists the shelf collection as a single document.
type ShelfStore interface {
	// Load reads the persisted document. A missing or malformed document
	// yields the fresh default collection, never an error.
	Load() (*Collection, error)
	// Save serializes the whole collection and overwrites the document.
	// I/O failures propagate.
	Save(c *Collection) error
	// Path returns the document location on disk.
	Path() string
}

// ScriptRunner executes command source text for one script kind. The shelf
// layer never interprets the source; it only selects a runner by kind.
type ScriptRunner interface {
	Kind() ScriptKind
	Run(ctx context.Context, source string) (string, error)
}
