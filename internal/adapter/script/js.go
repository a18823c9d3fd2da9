package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel/trace"

	"floatshelf/internal/domain"
	"floatshelf/internal/infra/tracer"
)

// defaultTimeout bounds a single script execution.
const defaultTimeout = 10 * time.Second

// JSRunner executes button commands as JavaScript. Every run gets a fresh
// goja VM, so no state leaks between buttons.
type JSRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

var _ domain.ScriptRunner = (*JSRunner)(nil)

// NewJSRunner creates the JavaScript runner. A non-positive timeout falls
// back to the default.
func NewJSRunner(timeout time.Duration, logger *slog.Logger) *JSRunner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &JSRunner{timeout: timeout, logger: logger}
}

func (r *JSRunner) Kind() domain.ScriptKind { return domain.ScriptJS }

// Run executes source and returns everything the script printed. When the
// script prints nothing, the value of its final expression is returned
// instead.
func (r *JSRunner) Run(ctx context.Context, source string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "script.run",
		trace.WithAttributes(
			tracer.StringAttr("script.kind", string(domain.ScriptJS)),
			tracer.IntAttr("script.source_bytes", len(source)),
		),
	)
	defer span.End()

	vm := goja.New()

	var out strings.Builder
	print := func(args ...any) {
		fmt.Fprintln(&out, args...)
	}
	vm.Set("print", print)
	vm.Set("console", map[string]any{"log": print, "error": print})

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		val goja.Value
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		val, err := vm.RunString(source)
		resultCh <- result{val, err}
	}()

	select {
	case <-ctx.Done():
		vm.Interrupt("timeout")
		err := fmt.Errorf("script timed out: %w", ctx.Err())
		tracer.RecordError(span, err)
		return "", err
	case res := <-resultCh:
		if res.err != nil {
			err := fmt.Errorf("failed to run script: %w", res.err)
			tracer.RecordError(span, err)
			return "", err
		}
		output := strings.TrimRight(out.String(), "\n")
		if output == "" && res.val != nil && res.val != goja.Undefined() && res.val != goja.Null() {
			output = res.val.String()
		}
		tracer.SetOK(span)
		return output, nil
	}
}
