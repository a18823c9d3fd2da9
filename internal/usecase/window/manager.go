package window

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"floatshelf/internal/domain"
)

// Task is a unit of work deferred to a later tick of the window loop.
type Task func(ctx context.Context)

const (
	// buttonCell is the layout footprint of one shelf button in pixels.
	buttonCell = 40
	// frameMargin is the horizontal padding the layout reserves.
	frameMargin = 10

	defaultTickInterval = 100 * time.Millisecond
)

// ColumnsFor computes how many buttons fit in one row at the given width.
// Any width shows at least one column.
func ColumnsFor(width int) int {
	cols := (width - frameMargin) / buttonCell
	if cols < 1 {
		return 1
	}
	return cols
}

type stateEvent struct {
	Open    bool `json:"open"`
	Dropped int  `json:"dropped,omitempty"`
}

type resizeEvent struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Columns int `json:"columns"`
}

// Manager owns the single shelf-window handle: at most one window is open at
// a time, and deferred tasks belong to it. Tasks queued on an open window run
// on a later tick; closing the window drops whatever is still queued.
type Manager struct {
	bus    domain.EventBus
	logger *slog.Logger
	tick   time.Duration

	mu      sync.Mutex
	open    bool
	width   int
	height  int
	columns int
	tasks   []Task
}

// NewManager creates a window manager. A non-positive tick falls back to the
// default drain interval.
func NewManager(bus domain.EventBus, logger *slog.Logger, tick time.Duration) *Manager {
	if tick <= 0 {
		tick = defaultTickInterval
	}
	return &Manager{
		bus:     bus,
		logger:  logger,
		tick:    tick,
		columns: 1,
	}
}

// Open shows the window. Opening an already open window is a no-op; the
// return value reports whether the state changed.
func (m *Manager) Open(ctx context.Context) bool {
	m.mu.Lock()
	if m.open {
		m.mu.Unlock()
		return false
	}
	m.open = true
	m.mu.Unlock()

	m.emitEvent(ctx, domain.EventWindowOpened, stateEvent{Open: true})
	m.logger.Info("window opened")
	return true
}

// Close destroys the window handle and drops any tasks still queued.
func (m *Manager) Close(ctx context.Context) bool {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return false
	}
	m.open = false
	dropped := len(m.tasks)
	m.tasks = nil
	m.mu.Unlock()

	if dropped > 0 {
		m.logger.Warn("dropped deferred tasks on close", "count", dropped)
	}
	m.emitEvent(ctx, domain.EventWindowClosed, stateEvent{Open: false, Dropped: dropped})
	m.logger.Info("window closed")
	return true
}

// Toggle opens a closed window immediately. An open window is not torn down
// mid-event: the close is deferred to the next tick, so the handler that
// triggered the toggle finishes before its window goes away. Reports whether
// a window will be open once any deferred close has run.
func (m *Manager) Toggle(ctx context.Context) bool {
	m.mu.Lock()
	open := m.open
	m.mu.Unlock()

	if !open {
		m.Open(ctx)
		return true
	}
	m.Defer(func(ctx context.Context) { m.Close(ctx) })
	return false
}

// IsOpen reports whether the window handle exists.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Columns returns the current layout column count.
func (m *Manager) Columns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.columns
}

// Defer queues a task for the next tick. Without an open window to own it
// the task is dropped immediately.
func (m *Manager) Defer(task Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		m.logger.Debug("deferred task dropped, window not open")
		return
	}
	m.tasks = append(m.tasks, task)
}

// Tick drains one batch of deferred tasks, returning how many ran. Tasks
// queued during the drain wait for the next tick. If a task closes the
// window, the rest of its batch is dropped with it.
func (m *Manager) Tick(ctx context.Context) int {
	m.mu.Lock()
	batch := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	ran := 0
	for _, task := range batch {
		task(ctx)
		ran++
		if !m.IsOpen() && ran < len(batch) {
			m.logger.Warn("dropped deferred tasks on close", "count", len(batch)-ran)
			break
		}
	}
	return ran
}

// Resize records the window geometry and recomputes the button layout. The
// resize event fires only when the column count actually changes, so resize
// chatter inside one column band stays quiet.
func (m *Manager) Resize(ctx context.Context, width, height int) (int, error) {
	const op = "Manager.Resize"

	if width <= 0 || height <= 0 {
		return 0, domain.NewDomainError(op, domain.ErrInvalidInput, "width and height must be positive")
	}

	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		m.logger.Warn("resize on closed window")
		return 0, domain.NewDomainError(op, domain.ErrWindowClosed, "")
	}
	m.width, m.height = width, height
	cols := ColumnsFor(width)
	changed := cols != m.columns
	m.columns = cols
	m.mu.Unlock()

	if changed {
		m.emitEvent(ctx, domain.EventWindowResized, resizeEvent{Width: width, Height: height, Columns: cols})
		m.logger.Info("window layout changed", "width", width, "columns", cols)
	}
	return cols, nil
}

// StartTickLoop drains deferred tasks in the background until ctx ends.
func (m *Manager) StartTickLoop(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Tick(ctx)
			}
		}
	}()
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
