package window

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"floatshelf/internal/domain"
)

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }
func (b *recordingBus) Close()                                                 {}

func (b *recordingBus) types() []domain.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

func newTestWindow() *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(nil, logger, 0)
}

func TestColumnsFor(t *testing.T) {
	cases := []struct {
		width int
		want  int
	}{
		{0, 1},
		{10, 1},
		{49, 1},
		{89, 1},
		{90, 2},
		{130, 3},
		{410, 10},
	}
	for _, tc := range cases {
		if got := ColumnsFor(tc.width); got != tc.want {
			t.Errorf("ColumnsFor(%d) = %d, want %d", tc.width, got, tc.want)
		}
	}
}

func TestManagerOpenClose(t *testing.T) {
	m := newTestWindow()
	ctx := context.Background()

	if m.IsOpen() {
		t.Fatal("window should start closed")
	}
	if !m.Open(ctx) {
		t.Error("first Open should change state")
	}
	if m.Open(ctx) {
		t.Error("second Open should be a no-op")
	}
	if !m.IsOpen() {
		t.Error("window should be open")
	}
	if !m.Close(ctx) {
		t.Error("Close should change state")
	}
	if m.Close(ctx) {
		t.Error("second Close should be a no-op")
	}
}

func TestManagerToggleDefersClose(t *testing.T) {
	m := newTestWindow()
	ctx := context.Background()

	if !m.Toggle(ctx) {
		t.Fatal("toggling a closed window should open it")
	}
	if !m.IsOpen() {
		t.Fatal("window should be open after toggle")
	}

	// The close is deferred, not immediate.
	if m.Toggle(ctx) {
		t.Error("toggling an open window should report closing")
	}
	if !m.IsOpen() {
		t.Fatal("close must wait for the next tick")
	}
	m.Tick(ctx)
	if m.IsOpen() {
		t.Error("deferred close should have run on tick")
	}
}

func TestManagerTickRunsInOrder(t *testing.T) {
	m := newTestWindow()
	ctx := context.Background()
	m.Open(ctx)

	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		m.Defer(func(context.Context) { got = append(got, name) })
	}

	if ran := m.Tick(ctx); ran != 3 {
		t.Fatalf("ran %d tasks, want 3", ran)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("got order %v, want [a b c]", got)
	}
}

func TestManagerTaskQueuedDuringDrainWaits(t *testing.T) {
	m := newTestWindow()
	ctx := context.Background()
	m.Open(ctx)

	second := false
	m.Defer(func(context.Context) {
		m.Defer(func(context.Context) { second = true })
	})

	if ran := m.Tick(ctx); ran != 1 {
		t.Fatalf("first tick ran %d tasks, want 1", ran)
	}
	if second {
		t.Fatal("task queued during drain must wait for the next tick")
	}
	if ran := m.Tick(ctx); ran != 1 {
		t.Fatalf("second tick ran %d tasks, want 1", ran)
	}
	if !second {
		t.Error("second task never ran")
	}
}

func TestManagerCloseDropsQueuedTasks(t *testing.T) {
	m := newTestWindow()
	ctx := context.Background()
	m.Open(ctx)

	ran := false
	m.Defer(func(context.Context) { ran = true })
	m.Close(ctx)

	if n := m.Tick(ctx); n != 0 {
		t.Errorf("tick after close ran %d tasks, want 0", n)
	}
	if ran {
		t.Error("task should have been dropped by close")
	}
}

func TestManagerDeferWithoutWindowDropped(t *testing.T) {
	m := newTestWindow()

	m.Defer(func(context.Context) { t.Error("task should never run") })
	if n := m.Tick(context.Background()); n != 0 {
		t.Errorf("ran %d tasks, want 0", n)
	}
}

func TestManagerMidDrainCloseDropsRest(t *testing.T) {
	m := newTestWindow()
	ctx := context.Background()
	m.Open(ctx)

	rest := false
	m.Defer(func(ctx context.Context) { m.Close(ctx) })
	m.Defer(func(context.Context) { rest = true })

	if ran := m.Tick(ctx); ran != 1 {
		t.Errorf("ran %d tasks, want 1", ran)
	}
	if rest {
		t.Error("tasks after a mid-batch close should be dropped")
	}
}

func TestManagerResize(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := &recordingBus{}
	m := NewManager(bus, logger, 0)
	ctx := context.Background()

	if _, err := m.Resize(ctx, 200, 300); !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("resize on closed window: got %v, want ErrWindowClosed", err)
	}

	m.Open(ctx)

	cols, err := m.Resize(ctx, 90, 300)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if cols != 2 {
		t.Errorf("got %d columns, want 2", cols)
	}

	// Same column band: no event.
	if _, err := m.Resize(ctx, 95, 300); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	// New column band: event.
	cols, err = m.Resize(ctx, 130, 300)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if cols != 3 {
		t.Errorf("got %d columns, want 3", cols)
	}

	resizes := 0
	for _, typ := range bus.types() {
		if typ == domain.EventWindowResized {
			resizes++
		}
	}
	if resizes != 2 {
		t.Errorf("got %d resize events, want 2 (one per column change)", resizes)
	}

	if _, err := m.Resize(ctx, 0, 300); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestManagerEmitsOpenCloseEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := &recordingBus{}
	m := NewManager(bus, logger, 0)
	ctx := context.Background()

	m.Open(ctx)
	m.Close(ctx)

	got := bus.types()
	want := []domain.EventType{domain.EventWindowOpened, domain.EventWindowClosed}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got events %v, want %v", got, want)
	}
}

func TestManagerStartTickLoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(nil, logger, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Open(ctx)
	m.StartTickLoop(ctx)

	done := make(chan struct{})
	m.Defer(func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred task never ran")
	}
}
