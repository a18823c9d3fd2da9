package shelf

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"floatshelf/internal/domain"
	"floatshelf/internal/infra/tracer"
)

// RunnerSource resolves the script runner for a button's command kind. It
// abstracts the runner registry so that Manager does not depend on the
// concrete adapter type.
type RunnerSource interface {
	Get(kind domain.ScriptKind) (domain.ScriptRunner, error)
}

// Patch contains optional fields for editing a button in place.
type Patch struct {
	Label   *string            `json:"label,omitempty"`
	Command *string            `json:"command,omitempty"`
	Icon    *string            `json:"icon,omitempty"`
	Tooltip *string            `json:"tooltip,omitempty"`
	Kind    *domain.ScriptKind `json:"type,omitempty"`
}

type shelfEvent struct {
	Name string `json:"name"`
	Old  string `json:"old,omitempty"`
}

type buttonEvent struct {
	Shelf string `json:"shelf"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

type runEvent struct {
	Shelf string `json:"shelf"`
	ID    string `json:"id"`
	Label string `json:"label"`
	OK    bool   `json:"ok"`
}

// Manager owns the in-memory shelf collection, enforces its invariants, and
// mirrors every mutation to the store before returning. Mutations are
// serialized by a single lock; script execution runs outside it.
type Manager struct {
	store   domain.ShelfStore
	runners RunnerSource
	history domain.RunHistory
	bus     domain.EventBus
	logger  *slog.Logger

	mu      sync.Mutex
	col     *domain.Collection
	current string
}

// NewManager creates a Manager. Call Load before any other operation. The
// history sink may be nil when run recording is disabled.
func NewManager(store domain.ShelfStore, runners RunnerSource, history domain.RunHistory, bus domain.EventBus, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		runners: runners,
		history: history,
		bus:     bus,
		logger:  logger,
		col:     domain.NewCollection(),
		current: domain.DefaultShelfName,
	}
}

// Load reads the persisted collection, repairs invariant violations, and
// points the current shelf at the default. Should be called once at startup.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("shelfmanager: load: %w", err)
	}
	if col.Normalize() {
		m.logger.Warn("shelf collection repaired", "default", col.Default)
		if err := m.store.Save(col); err != nil {
			return fmt.Errorf("shelfmanager: save repaired collection: %w", err)
		}
	}
	m.col = col
	m.current = col.Default

	m.logger.Info("shelf collection loaded",
		"shelves", len(col.Shelves),
		"default", col.Default,
		"path", m.store.Path(),
	)
	return nil
}

// CreateShelf adds an empty shelf and makes it the current one.
func (m *Manager) CreateShelf(ctx context.Context, name string) error {
	const op = "Manager.CreateShelf"

	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		m.logger.Warn("shelf name is empty")
		return domain.NewDomainError(op, domain.ErrInvalidInput, "shelf name is empty")
	}
	if name == domain.DefaultKey {
		m.logger.Warn("shelf name is reserved", "name", name)
		return domain.NewDomainError(op, domain.ErrReservedName, name)
	}
	if _, ok := m.col.Shelves[name]; ok {
		m.logger.Warn("shelf already exists", "name", name)
		return domain.NewDomainError(op, domain.ErrDuplicate, name)
	}

	m.col.Shelves[name] = []*domain.ButtonSpec{}
	m.current = name

	if err := m.persist(op); err != nil {
		return err
	}
	m.emitEvent(ctx, domain.EventShelfCreated, shelfEvent{Name: name})
	m.logger.Info("shelf created", "name", name)
	return nil
}

// RenameShelf moves a shelf to a new name, preserving button order. The
// default pointer and the current-shelf pointer follow the rename.
func (m *Manager) RenameShelf(ctx context.Context, oldName, newName string) error {
	const op = "Manager.RenameShelf"

	m.mu.Lock()
	defer m.mu.Unlock()

	if oldName == domain.DefaultShelfName {
		m.logger.Warn("default shelf cannot be renamed")
		return domain.NewDomainError(op, domain.ErrProtectedShelf, oldName)
	}
	if newName == "" || newName == oldName {
		m.logger.Warn("invalid new shelf name", "old", oldName, "new", newName)
		return domain.NewDomainError(op, domain.ErrInvalidInput, "new name is empty or unchanged")
	}
	if newName == domain.DefaultKey {
		m.logger.Warn("shelf name is reserved", "name", newName)
		return domain.NewDomainError(op, domain.ErrReservedName, newName)
	}
	buttons, ok := m.col.Shelves[oldName]
	if !ok {
		m.logger.Warn("shelf not found", "name", oldName)
		return domain.NewDomainError(op, domain.ErrNotFound, oldName)
	}
	if _, ok := m.col.Shelves[newName]; ok {
		m.logger.Warn("shelf already exists", "name", newName)
		return domain.NewDomainError(op, domain.ErrDuplicate, newName)
	}

	delete(m.col.Shelves, oldName)
	m.col.Shelves[newName] = buttons
	if m.col.Default == oldName {
		m.col.Default = newName
	}
	if m.current == oldName {
		m.current = newName
	}

	if err := m.persist(op); err != nil {
		return err
	}
	m.emitEvent(ctx, domain.EventShelfRenamed, shelfEvent{Name: newName, Old: oldName})
	m.logger.Info("shelf renamed", "old", oldName, "new", newName)
	return nil
}

// DeleteShelf removes a shelf. The "Default" shelf is protected. When the
// deleted shelf was the default, the default pointer is reassigned; the
// current shelf always falls back to the (possibly new) default.
func (m *Manager) DeleteShelf(ctx context.Context, name string) error {
	const op = "Manager.DeleteShelf"

	m.mu.Lock()
	defer m.mu.Unlock()

	if name == domain.DefaultShelfName {
		m.logger.Warn("default shelf cannot be deleted")
		return domain.NewDomainError(op, domain.ErrProtectedShelf, name)
	}
	if _, ok := m.col.Shelves[name]; !ok {
		m.logger.Warn("shelf not found", "name", name)
		return domain.NewDomainError(op, domain.ErrNotFound, name)
	}

	delete(m.col.Shelves, name)
	if m.col.Default == name {
		m.col.Default = m.col.ReassignDefault()
	}
	m.current = m.col.Default

	if err := m.persist(op); err != nil {
		return err
	}
	m.emitEvent(ctx, domain.EventShelfDeleted, shelfEvent{Name: name})
	m.logger.Info("shelf deleted", "name", name, "default", m.col.Default)
	return nil
}

// SetDefaultShelf changes which shelf opens on startup.
func (m *Manager) SetDefaultShelf(ctx context.Context, name string) error {
	const op = "Manager.SetDefaultShelf"

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.col.Shelves[name]; !ok {
		m.logger.Warn("shelf not found", "name", name)
		return domain.NewDomainError(op, domain.ErrNotFound, name)
	}
	if m.col.Default == name {
		return nil
	}

	old := m.col.Default
	m.col.Default = name

	if err := m.persist(op); err != nil {
		return err
	}
	m.emitEvent(ctx, domain.EventShelfDefaultChanged, shelfEvent{Name: name, Old: old})
	m.logger.Info("default shelf changed", "old", old, "new", name)
	return nil
}

// SetCurrentShelf switches the currently viewed shelf. The pointer is
// transient and never persisted.
func (m *Manager) SetCurrentShelf(ctx context.Context, name string) error {
	const op = "Manager.SetCurrentShelf"

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.col.Shelves[name]; !ok {
		m.logger.Warn("shelf not found", "name", name)
		return domain.NewDomainError(op, domain.ErrNotFound, name)
	}
	if m.current == name {
		return nil
	}

	m.current = name
	m.emitEvent(ctx, domain.EventShelfSelected, shelfEvent{Name: name})
	return nil
}

// AddButton appends a button to the end of the named shelf. Blank fields are
// filled in: kind defaults to js, the icon to the stock command icon, the
// tooltip to the label, and the command to a stub that prints the label.
func (m *Manager) AddButton(ctx context.Context, shelfName string, spec domain.ButtonSpec) (*domain.ButtonSpec, error) {
	const op = "Manager.AddButton"

	m.mu.Lock()
	defer m.mu.Unlock()

	if spec.Label == "" {
		m.logger.Warn("button label is empty", "shelf", shelfName)
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "button label is empty")
	}
	if _, ok := m.col.Shelves[shelfName]; !ok {
		m.logger.Warn("shelf not found", "name", shelfName)
		return nil, domain.NewDomainError(op, domain.ErrNotFound, shelfName)
	}
	if err := applyButtonDefaults(&spec); err != nil {
		m.logger.Warn("invalid button", "shelf", shelfName, "error", err)
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, err.Error())
	}

	spec.ID = newID()
	m.col.Shelves[shelfName] = append(m.col.Shelves[shelfName], &spec)

	if err := m.persist(op); err != nil {
		return nil, err
	}
	m.emitEvent(ctx, domain.EventButtonAdded, buttonEvent{Shelf: shelfName, ID: spec.ID, Label: spec.Label})
	m.logger.Info("button added", "shelf", shelfName, "id", spec.ID, "label", spec.Label)

	out := spec
	return &out, nil
}

// EditButton patches a button in place. Changing the label also refreshes
// the tooltip unless the patch sets the tooltip explicitly.
func (m *Manager) EditButton(ctx context.Context, shelfName, id string, patch Patch) (*domain.ButtonSpec, error) {
	const op = "Manager.EditButton"

	m.mu.Lock()
	defer m.mu.Unlock()

	_, b, err := m.locateButton(op, shelfName, id)
	if err != nil {
		return nil, err
	}

	if patch.Kind != nil {
		if *patch.Kind != domain.ScriptJS && *patch.Kind != domain.ScriptLua {
			m.logger.Warn("unknown command kind", "kind", *patch.Kind)
			return nil, domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("unknown command kind %q", *patch.Kind))
		}
		b.Kind = *patch.Kind
	}
	if patch.Label != nil {
		if *patch.Label == "" {
			m.logger.Warn("button label is empty", "shelf", shelfName, "id", id)
			return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "button label is empty")
		}
		b.Label = *patch.Label
		if patch.Tooltip == nil {
			b.Tooltip = *patch.Label
		}
	}
	if patch.Command != nil {
		b.Command = *patch.Command
	}
	if patch.Icon != nil {
		b.Icon = *patch.Icon
	}
	if patch.Tooltip != nil {
		b.Tooltip = *patch.Tooltip
	}

	if err := m.persist(op); err != nil {
		return nil, err
	}
	m.emitEvent(ctx, domain.EventButtonEdited, buttonEvent{Shelf: shelfName, ID: id, Label: b.Label})
	m.logger.Info("button edited", "shelf", shelfName, "id", id)

	out := *b
	return &out, nil
}

// MoveButton swaps a button with its immediate neighbor. At a boundary the
// call is a no-op, returns false, and nothing is persisted.
func (m *Manager) MoveButton(ctx context.Context, shelfName, id string, dir domain.MoveDirection) (bool, error) {
	const op = "Manager.MoveButton"

	m.mu.Lock()
	defer m.mu.Unlock()

	if dir != domain.MoveLeft && dir != domain.MoveRight {
		return false, domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("direction must be -1 or +1, got %d", dir))
	}
	idx, b, err := m.locateButton(op, shelfName, id)
	if err != nil {
		return false, err
	}

	seq := m.col.Shelves[shelfName]
	target := idx + int(dir)
	if target < 0 || target >= len(seq) {
		return false, nil
	}

	seq[idx], seq[target] = seq[target], seq[idx]

	if err := m.persist(op); err != nil {
		return false, err
	}
	m.emitEvent(ctx, domain.EventButtonMoved, buttonEvent{Shelf: shelfName, ID: id, Label: b.Label})
	m.logger.Info("button moved", "shelf", shelfName, "id", id, "from", idx, "to", target)
	return true, nil
}

// DeleteButton removes a button from the named shelf.
func (m *Manager) DeleteButton(ctx context.Context, shelfName, id string) error {
	const op = "Manager.DeleteButton"

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, b, err := m.locateButton(op, shelfName, id)
	if err != nil {
		return err
	}

	seq := m.col.Shelves[shelfName]
	m.col.Shelves[shelfName] = append(seq[:idx], seq[idx+1:]...)

	if err := m.persist(op); err != nil {
		return err
	}
	m.emitEvent(ctx, domain.EventButtonDeleted, buttonEvent{Shelf: shelfName, ID: id, Label: b.Label})
	m.logger.Info("button deleted", "shelf", shelfName, "id", id)
	return nil
}

// RunButton executes a button's command through the runner for its kind.
// Failures are caught here: they are recorded, logged, and returned, but
// never alter shelf state. The run record is returned even on failure.
func (m *Manager) RunButton(ctx context.Context, shelfName, id string) (*domain.RunRecord, error) {
	const op = "Manager.RunButton"

	ctx, span := tracer.StartSpan(ctx, "shelf.run_button",
		trace.WithAttributes(tracer.StringAttr("shelf", shelfName)),
	)
	defer span.End()

	m.mu.Lock()
	_, b, err := m.locateButton(op, shelfName, id)
	if err != nil {
		m.mu.Unlock()
		tracer.RecordError(span, err)
		return nil, err
	}
	spec := *b
	m.mu.Unlock()

	span.SetAttributes(
		tracer.StringAttr("button.label", spec.Label),
		tracer.StringAttr("script.kind", string(spec.Kind)),
	)

	runner, err := m.runners.Get(spec.Kind)
	if err != nil {
		m.logger.Warn("no runner for command kind", "kind", spec.Kind, "error", err)
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError(op, domain.ErrRunnerNotFound, string(spec.Kind))
	}

	rec := domain.RunRecord{
		ID:       newID(),
		Time:     time.Now(),
		Shelf:    shelfName,
		ButtonID: spec.ID,
		Label:    spec.Label,
		Kind:     spec.Kind,
	}

	output, runErr := runner.Run(ctx, spec.Command)
	rec.OK = runErr == nil
	rec.Output = output
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	if m.history != nil {
		if err := m.history.Append(ctx, rec); err != nil {
			m.logger.Warn("failed to record run", "id", rec.ID, "error", err)
		}
	}
	m.emitEvent(ctx, domain.EventButtonRun, runEvent{Shelf: shelfName, ID: spec.ID, Label: spec.Label, OK: rec.OK})

	if runErr != nil {
		m.logger.Warn("button command failed", "shelf", shelfName, "label", spec.Label, "kind", spec.Kind, "error", runErr)
		tracer.RecordError(span, runErr)
		return &rec, domain.NewDomainError(op, domain.ErrScriptFailed, runErr.Error())
	}
	m.logger.Info("button command ran", "shelf", shelfName, "label", spec.Label, "kind", spec.Kind)
	tracer.SetOK(span)
	return &rec, nil
}

// CurrentShelf returns the transient currently viewed shelf name.
func (m *Manager) CurrentShelf() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// DefaultShelf returns the persisted default shelf name.
func (m *Manager) DefaultShelf() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.col.Default
}

// ShelfNames returns all shelf names in sorted order.
func (m *Manager) ShelfNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.col.ShelfNames()
}

// Buttons returns copies of the named shelf's buttons in order.
func (m *Manager) Buttons(shelfName string) ([]domain.ButtonSpec, error) {
	const op = "Manager.Buttons"

	m.mu.Lock()
	defer m.mu.Unlock()

	seq, ok := m.col.Shelves[shelfName]
	if !ok {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, shelfName)
	}
	out := make([]domain.ButtonSpec, len(seq))
	for i, b := range seq {
		out[i] = *b
	}
	return out, nil
}

// Snapshot returns a deep copy of the whole collection.
func (m *Manager) Snapshot() *domain.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.col.Clone()
}

// --- internal ---

// persist writes the whole collection through the store. Callers hold m.mu.
func (m *Manager) persist(op string) error {
	if err := m.store.Save(m.col); err != nil {
		return fmt.Errorf("%s: persist: %w", op, err)
	}
	return nil
}

// locateButton finds a button by ID within a shelf, logging and reporting
// not-found when either is missing. Callers hold m.mu.
func (m *Manager) locateButton(op, shelfName, id string) (int, *domain.ButtonSpec, error) {
	if _, ok := m.col.Shelves[shelfName]; !ok {
		m.logger.Warn("shelf not found", "name", shelfName)
		return -1, nil, domain.NewDomainError(op, domain.ErrNotFound, shelfName)
	}
	idx, b := m.col.FindButton(shelfName, id)
	if b == nil {
		m.logger.Warn("button not found", "shelf", shelfName, "id", id)
		return -1, nil, domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("%s/%s", shelfName, id))
	}
	return idx, b, nil
}

func (m *Manager) emitEvent(ctx context.Context, eventType domain.EventType, payload any) {
	if m.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	m.bus.Publish(ctx, domain.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
	})
}

// applyButtonDefaults fills the blanks a new button is allowed to leave:
// kind, icon, tooltip, and a stub command derived from the label.
func applyButtonDefaults(spec *domain.ButtonSpec) error {
	if spec.Kind == "" {
		spec.Kind = domain.ScriptJS
	}
	if spec.Kind != domain.ScriptJS && spec.Kind != domain.ScriptLua {
		return fmt.Errorf("unknown command kind %q", spec.Kind)
	}
	if spec.Icon == "" {
		spec.Icon = domain.DefaultButtonIcon
	}
	if spec.Tooltip == "" {
		spec.Tooltip = spec.Label
	}
	if spec.Command == "" {
		spec.Command = fmt.Sprintf("print(%q)", spec.Label+" clicked")
	}
	return nil
}

func newID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
