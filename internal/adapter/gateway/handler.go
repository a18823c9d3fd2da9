package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"floatshelf/internal/adapter/icon"
	"floatshelf/internal/domain"
	"floatshelf/internal/usecase/shelf"
	"floatshelf/internal/usecase/window"
)

// HandlerDeps holds dependencies needed by RPC handlers.
type HandlerDeps struct {
	Shelves *shelf.Manager
	Window  *window.Manager
	History domain.RunHistory // can be nil
	Icons   *icon.Catalog     // can be nil
	Bus     domain.EventBus
	Logger  *slog.Logger
}

// RegisterDefaultHandlers registers all built-in RPC handlers on the server.
func RegisterDefaultHandlers(s *Server, deps HandlerDeps) {
	s.RegisterHandler("shelf.list", shelfListHandler(deps))
	s.RegisterHandler("shelf.create", shelfCreateHandler(deps))
	s.RegisterHandler("shelf.rename", shelfRenameHandler(deps))
	s.RegisterHandler("shelf.delete", shelfDeleteHandler(deps))
	s.RegisterHandler("shelf.default.set", shelfSetDefaultHandler(deps))
	s.RegisterHandler("shelf.select", shelfSelectHandler(deps))

	s.RegisterHandler("button.list", buttonListHandler(deps))
	s.RegisterHandler("button.add", buttonAddHandler(deps))
	s.RegisterHandler("button.edit", buttonEditHandler(deps))
	s.RegisterHandler("button.move", buttonMoveHandler(deps))
	s.RegisterHandler("button.delete", buttonDeleteHandler(deps))
	s.RegisterHandler("button.run", buttonRunHandler(deps))

	s.RegisterHandler("window.open", windowOpenHandler(deps))
	s.RegisterHandler("window.close", windowCloseHandler(deps))
	s.RegisterHandler("window.toggle", windowToggleHandler(deps))
	s.RegisterHandler("window.resize", windowResizeHandler(deps))
	s.RegisterHandler("window.state", windowStateHandler(deps))

	if deps.History != nil {
		s.RegisterHandler("history.recent", historyRecentHandler(deps))
	}
	if deps.Icons != nil {
		s.RegisterHandler("icon.list", iconListHandler(deps))
		s.RegisterHandler("icon.resolve", iconResolveHandler(deps))
		s.RegisterHandler("icon.rescan", iconRescanHandler(deps))
	}
}

// buttonView is the wire form of a button. Unlike the persisted document it
// carries the in-memory ID so clients can address later edit and run calls.
type buttonView struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Command string `json:"command"`
	Icon    string `json:"icon"`
	Tooltip string `json:"tooltip"`
	Kind    string `json:"type"`
}

func viewOf(b domain.ButtonSpec) buttonView {
	return buttonView{
		ID:      b.ID,
		Label:   b.Label,
		Command: b.Command,
		Icon:    b.Icon,
		Tooltip: b.Tooltip,
		Kind:    string(b.Kind),
	}
}

// --- shelves ---

type shelfInfo struct {
	Name    string `json:"name"`
	Buttons int    `json:"buttons"`
}

type shelfListResponse struct {
	Shelves []shelfInfo `json:"shelves"`
	Default string      `json:"default"`
	Current string      `json:"current"`
}

func shelfListHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		col := deps.Shelves.Snapshot()
		resp := shelfListResponse{
			Shelves: make([]shelfInfo, 0, len(col.Shelves)),
			Default: col.Default,
			Current: deps.Shelves.CurrentShelf(),
		}
		for _, name := range col.ShelfNames() {
			resp.Shelves = append(resp.Shelves, shelfInfo{Name: name, Buttons: len(col.Shelves[name])})
		}
		return json.Marshal(resp)
	}
}

type shelfNameRequest struct {
	Name string `json:"name"`
}

func shelfCreateHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req shelfNameRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Shelves.CreateShelf(ctx, req.Name); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]bool{"ok": true})
	}
}

type shelfRenameRequest struct {
	Old string `json:"old"`
	New string `json:"new"`
}

func shelfRenameHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req shelfRenameRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Old == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Shelves.RenameShelf(ctx, req.Old, req.New); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]bool{"ok": true})
	}
}

func shelfDeleteHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req shelfNameRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Name == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Shelves.DeleteShelf(ctx, req.Name); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]bool{"ok": true})
	}
}

func shelfSetDefaultHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req shelfNameRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Name == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Shelves.SetDefaultShelf(ctx, req.Name); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]bool{"ok": true})
	}
}

func shelfSelectHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req shelfNameRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Name == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Shelves.SetCurrentShelf(ctx, req.Name); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"current": deps.Shelves.CurrentShelf()})
	}
}

// --- buttons ---

type buttonListRequest struct {
	Shelf string `json:"shelf"`
}

func buttonListHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req buttonListRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Shelf == "" {
			req.Shelf = deps.Shelves.CurrentShelf()
		}
		buttons, err := deps.Shelves.Buttons(req.Shelf)
		if err != nil {
			return nil, err
		}
		views := make([]buttonView, len(buttons))
		for i, b := range buttons {
			views[i] = viewOf(b)
		}
		return json.Marshal(views)
	}
}

type buttonAddRequest struct {
	Shelf   string `json:"shelf"`
	Label   string `json:"label"`
	Command string `json:"command"`
	Icon    string `json:"icon"`
	Tooltip string `json:"tooltip"`
	Kind    string `json:"type"`
}

func buttonAddHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req buttonAddRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Shelf == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		added, err := deps.Shelves.AddButton(ctx, req.Shelf, domain.ButtonSpec{
			Label:   req.Label,
			Command: req.Command,
			Icon:    req.Icon,
			Tooltip: req.Tooltip,
			Kind:    domain.ScriptKind(req.Kind),
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(viewOf(*added))
	}
}

type buttonEditRequest struct {
	Shelf   string             `json:"shelf"`
	ID      string             `json:"id"`
	Label   *string            `json:"label,omitempty"`
	Command *string            `json:"command,omitempty"`
	Icon    *string            `json:"icon,omitempty"`
	Tooltip *string            `json:"tooltip,omitempty"`
	Kind    *domain.ScriptKind `json:"type,omitempty"`
}

func buttonEditHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req buttonEditRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Shelf == "" || req.ID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		edited, err := deps.Shelves.EditButton(ctx, req.Shelf, req.ID, shelf.Patch{
			Label:   req.Label,
			Command: req.Command,
			Icon:    req.Icon,
			Tooltip: req.Tooltip,
			Kind:    req.Kind,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(viewOf(*edited))
	}
}

type buttonMoveRequest struct {
	Shelf     string `json:"shelf"`
	ID        string `json:"id"`
	Direction int    `json:"direction"` // -1 left, +1 right
}

func buttonMoveHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req buttonMoveRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Shelf == "" || req.ID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		moved, err := deps.Shelves.MoveButton(ctx, req.Shelf, req.ID, domain.MoveDirection(req.Direction))
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]bool{"moved": moved})
	}
}

type buttonRefRequest struct {
	Shelf string `json:"shelf"`
	ID    string `json:"id"`
}

func buttonDeleteHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req buttonRefRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Shelf == "" || req.ID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Shelves.DeleteButton(ctx, req.Shelf, req.ID); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]bool{"ok": true})
	}
}

func buttonRunHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req buttonRefRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Shelf == "" || req.ID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		rec, err := deps.Shelves.RunButton(ctx, req.Shelf, req.ID)
		if err != nil {
			// A failed script still produced a record the client wants to see.
			if rec != nil {
				return json.Marshal(rec)
			}
			return nil, err
		}
		return json.Marshal(rec)
	}
}

// --- window ---

type windowStateResponse struct {
	Open    bool `json:"open"`
	Columns int  `json:"columns"`
}

func windowOpenHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		deps.Window.Open(ctx)
		return json.Marshal(map[string]bool{"open": deps.Window.IsOpen()})
	}
}

func windowCloseHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		deps.Window.Close(ctx)
		return json.Marshal(map[string]bool{"open": deps.Window.IsOpen()})
	}
}

func windowToggleHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		open := deps.Window.Toggle(ctx)
		return json.Marshal(map[string]bool{"open": open})
	}
}

type windowResizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func windowResizeHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req windowResizeRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		columns, err := deps.Window.Resize(ctx, req.Width, req.Height)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]int{"columns": columns})
	}
}

func windowStateHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(windowStateResponse{
			Open:    deps.Window.IsOpen(),
			Columns: deps.Window.Columns(),
		})
	}
}

// --- history ---

type historyRecentRequest struct {
	Limit int `json:"limit"`
}

func historyRecentHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req historyRecentRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Limit > 200 {
			req.Limit = 200
		}
		recs, err := deps.History.Recent(ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(recs)
	}
}

// --- icons ---

type iconListRequest struct {
	Query string `json:"query"`
}

func iconListHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req iconListRequest
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, domain.ErrRPCInvalidPayload
			}
		}
		return json.Marshal(deps.Icons.Filter(req.Query))
	}
}

type iconResolveRequest struct {
	Name string `json:"name"`
}

func iconResolveHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req iconResolveRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if req.Name == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		path, err := deps.Icons.Resolve(req.Name)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"path": path})
	}
}

func iconRescanHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		n := deps.Icons.Scan()
		return json.Marshal(map[string]int{"icons": n})
	}
}

// RegisterRESTHandlers registers HTTP REST endpoints on the gateway server.
// runnerKinds is the list of registered script runner kinds for the status
// response.
func RegisterRESTHandlers(s *Server, deps HandlerDeps, runnerKinds []string) *Metrics {
	startTime := time.Now()
	metrics := &Metrics{}

	// Subscribe to events for metric counters.
	if deps.Bus != nil {
		deps.Bus.Subscribe(domain.EventButtonRun, func(_ context.Context, e domain.Event) {
			metrics.RunsTotal.Add(1)
			var outcome struct {
				OK bool `json:"ok"`
			}
			if err := json.Unmarshal(e.Payload, &outcome); err == nil && !outcome.OK {
				metrics.RunFailuresTotal.Add(1)
			}
		})
		deps.Bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
			metrics.EventsTotal.Add(1)
		})
	}

	// Auth middleware for REST endpoints.
	authMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				token = r.Header.Get("Authorization")
				if len(token) > 7 && token[:7] == "Bearer " {
					token = token[7:]
				}
			}
			if _, err := s.auth.Authenticate(token); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	s.RegisterHTTPRoute("/api/v1/status", authMiddleware(statusHandler(deps, startTime, metrics, runnerKinds)))
	s.RegisterHTTPRoute("/metrics", authMiddleware(metricsHandler(deps, startTime, metrics)))

	return metrics
}
