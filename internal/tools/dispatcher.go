package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Result captures the outcome of a tool call.
type Result struct {
	Text        string
	Binary      []byte
	ContentType string
	FilePath    string
}

// Handler executes a tool by name.
type Handler func(ctx context.Context, args map[string]interface{}) (Result, error)

var (
	handlersMu sync.RWMutex
	handlers   = make(map[string]Handler)
)

// ErrUnknownTool indicates the requested tool has no registered handler.
var ErrUnknownTool = errors.New("unknown tool")

// ErrBadArgument reports a missing or mistyped tool argument.
var ErrBadArgument = errors.New("bad argument")

// RegisterHandler associates a tool name with an executable handler.
func RegisterHandler(name string, h Handler) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers[name] = h
}

// Call executes the handler registered for the given tool name.
func Call(ctx context.Context, name string, args map[string]interface{}) (Result, error) {
	handlersMu.RLock()
	h, ok := handlers[name]
	handlersMu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return h(ctx, args)
}

// ResetHandlersForTest clears registered handlers (test helper).
func ResetHandlersForTest() {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers = make(map[string]Handler)
}

func argString(args map[string]interface{}, name string, required bool) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("%w: %s is required", ErrBadArgument, name)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrBadArgument, name)
	}
	return s, nil
}

func argInt(args map[string]interface{}, name string, def int) (int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s must be an integer", ErrBadArgument, name)
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrBadArgument, name)
	}
}

func argBool(args map[string]interface{}, name string) bool {
	b, _ := args[name].(bool)
	return b
}

// argFloats reads a numeric array of exactly n elements. A missing
// argument yields def.
func argFloats(args map[string]interface{}, name string, n int, def []float64) ([]float64, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	list, ok := v.([]interface{})
	if !ok || len(list) != n {
		return nil, fmt.Errorf("%w: %s must be an array of %d numbers", ErrBadArgument, name, n)
	}
	out := make([]float64, n)
	for i, item := range list {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] must be a number", ErrBadArgument, name, i)
		}
		out[i] = f
	}
	return out, nil
}
