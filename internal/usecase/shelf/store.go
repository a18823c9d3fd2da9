package shelf

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"floatshelf/internal/domain"
)

// documentSchema constrains the persisted document shape: every key except
// "_default" maps to an array of button objects, and "_default" holds a
// string. Extra keys inside button objects are tolerated.
const documentSchema = `{
	"type": "object",
	"properties": {
		"_default": {"type": "string"}
	},
	"additionalProperties": {
		"type": "array",
		"items": {"type": "object"}
	}
}`

// FileStore implements domain.ShelfStore with single-document JSON
// persistence. The whole collection is rewritten on every Save.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	schema *jsonschema.Schema
	logger *slog.Logger
}

var _ domain.ShelfStore = (*FileStore)(nil)

// NewFileStore creates a file-backed shelf store rooted at dir.
func NewFileStore(dir, file string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("shelfstore: create dir: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(documentSchema))
	if err != nil {
		return nil, fmt.Errorf("shelfstore: compile document schema: %w", err)
	}

	return &FileStore{
		path:   filepath.Join(dir, file),
		schema: schema,
		logger: logger,
	}, nil
}

// Path returns the document location on disk.
func (s *FileStore) Path() string { return s.path }

// Load reads the persisted document. A missing file yields the fresh default
// collection. A document that fails to parse or violates the document schema
// is treated as total loss: a warning is logged and the default collection is
// returned, never an error. Only read I/O failures propagate.
func (s *FileStore) Load() (*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewCollection(), nil
		}
		return nil, fmt.Errorf("shelfstore: read: %w", err)
	}

	c, err := s.decodeDocument(data)
	if err != nil {
		s.logger.Warn("shelf document malformed, resetting to defaults",
			"path", s.path,
			"error", err,
		)
		return domain.NewCollection(), nil
	}
	return c, nil
}

// Save serializes the whole collection as one JSON document and overwrites
// the file in place. There is deliberately no temp-file swap: a torn write is
// recovered by Load's reset policy. I/O failures propagate.
func (s *FileStore) Save(c *domain.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeDocument(c)
	if err != nil {
		return domain.WrapOp("shelfstore: marshal", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("shelfstore: write: %w", err)
	}
	return nil
}

// decodeDocument parses and shape-checks a persisted document, assigning a
// fresh ID to every button.
func (s *FileStore) decodeDocument(data []byte) (*domain.Collection, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if result := s.schema.Validate(doc); !result.IsValid() {
		return nil, fmt.Errorf("document shape: %s", result.Error())
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	c := &domain.Collection{Shelves: make(map[string][]*domain.ButtonSpec, len(raw))}
	for key, value := range raw {
		if key == domain.DefaultKey {
			if err := json.Unmarshal(value, &c.Default); err != nil {
				return nil, fmt.Errorf("parse %s: %w", domain.DefaultKey, err)
			}
			continue
		}
		var buttons []*domain.ButtonSpec
		if err := json.Unmarshal(value, &buttons); err != nil {
			return nil, fmt.Errorf("parse shelf %q: %w", key, err)
		}
		if buttons == nil {
			buttons = []*domain.ButtonSpec{}
		}
		for _, b := range buttons {
			b.ID = newID()
		}
		c.Shelves[key] = buttons
	}
	return c, nil
}

// encodeDocument flattens the collection into the persisted document: shelf
// names as keys next to the reserved "_default" pointer.
func encodeDocument(c *domain.Collection) ([]byte, error) {
	doc := make(map[string]any, len(c.Shelves)+1)
	for name, buttons := range c.Shelves {
		if buttons == nil {
			buttons = []*domain.ButtonSpec{}
		}
		doc[name] = buttons
	}
	doc[domain.DefaultKey] = c.Default
	return json.MarshalIndent(doc, "", "  ")
}
