package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lua "github.com/Shopify/go-lua"
	"go.opentelemetry.io/otel/trace"

	"floatshelf/internal/domain"
	"floatshelf/internal/infra/tracer"
)

// LuaRunner executes button commands as Lua. Every run gets a fresh state,
// so no state leaks between buttons.
type LuaRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

var _ domain.ScriptRunner = (*LuaRunner)(nil)

// NewLuaRunner creates the Lua runner. A non-positive timeout falls back to
// the default.
func NewLuaRunner(timeout time.Duration, logger *slog.Logger) *LuaRunner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &LuaRunner{timeout: timeout, logger: logger}
}

func (r *LuaRunner) Kind() domain.ScriptKind { return domain.ScriptLua }

// Run executes source and returns everything the script printed. Lua has no
// interrupt hook, so a timed-out script is abandoned to finish on its own
// and its output is discarded.
func (r *LuaRunner) Run(ctx context.Context, source string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "script.run",
		trace.WithAttributes(
			tracer.StringAttr("script.kind", string(domain.ScriptLua)),
			tracer.IntAttr("script.source_bytes", len(source)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	l := lua.NewState()
	lua.OpenLibraries(l)

	// Rebind print so output lands in the run record instead of stdout.
	var out strings.Builder
	l.PushGoFunction(func(state *lua.State) int {
		top := state.Top()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, fmt.Sprint(state.ToValue(i)))
		}
		fmt.Fprintln(&out, strings.Join(parts, "\t"))
		return 0
	})
	l.SetGlobal("print")

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("lua runtime panic: %v", rec)
			}
		}()
		errCh <- lua.DoString(l, source)
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("lua script abandoned after timeout")
		err := fmt.Errorf("script timed out: %w", ctx.Err())
		tracer.RecordError(span, err)
		return "", err
	case err := <-errCh:
		if err != nil {
			err = fmt.Errorf("failed to run script: %w", err)
			tracer.RecordError(span, err)
			return "", err
		}
		tracer.SetOK(span)
		return strings.TrimRight(out.String(), "\n"), nil
	}
}
