package scripting

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	return &GojaEngine{vm: goja.New()}
}

// runInterruptible executes fn with the VM wired to the context, so a
// cancelled context interrupts a long-running or looping script.
func (e *GojaEngine) runInterruptible(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := fn()
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val, nil
}

func (e *GojaEngine) CompileSelector(ctx context.Context, script string) (Selector, error) {
	_, err := e.runInterruptible(ctx, func() (goja.Value, error) {
		return e.vm.RunString(script)
	})
	if err != nil {
		return nil, fmt.Errorf("scripting: load selector script: %w", err)
	}

	fnVal := e.vm.Get("select")
	if fnVal == nil || goja.IsUndefined(fnVal) || goja.IsNull(fnVal) {
		return nil, fmt.Errorf("scripting: script does not define select(code)")
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("scripting: global select is not a function")
	}
	return &gojaSelector{engine: e, fn: fn}, nil
}

type gojaSelector struct {
	engine *GojaEngine
	fn     goja.Callable
}

func (s *gojaSelector) Select(ctx context.Context, code rune) (bool, error) {
	val, err := s.engine.runInterruptible(ctx, func() (goja.Value, error) {
		return s.fn(goja.Undefined(), s.engine.vm.ToValue(int(code)))
	})
	if err != nil {
		return false, fmt.Errorf("scripting: select(%d): %w", code, err)
	}
	return val.ToBoolean(), nil
}
