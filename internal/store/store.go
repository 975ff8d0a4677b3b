// Package store reads and writes the CAD application's state through the
// global store hook the web app exposes on window.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const DefaultHook = "useCADStore"

var (
	ErrInvalidHook = errors.New("store hook is not a JavaScript identifier")
	ErrShape       = errors.New("unexpected store value")
)

var hookPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Evaluator runs a JavaScript expression in the page. A nil result means
// the expression evaluated to undefined.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string) (json.RawMessage, error)
}

// Vec3 is an x, y, z position.
type Vec3 [3]float64

// Quat is an x, y, z, w rotation quaternion.
type Quat [4]float64

// Identity is the rotation new objects start with.
var Identity = Quat{0, 0, 0, 1}

func (v Vec3) String() string { return formatFloats(v[:]) }
func (q Quat) String() string { return formatFloats(q[:]) }

func formatFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, f := range vals {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Vec3From copies a three element slice, as read from config.
func Vec3From(vals []float64) (Vec3, error) {
	var v Vec3
	if len(vals) != len(v) {
		return v, fmt.Errorf("position needs %d components, got %d", len(v), len(vals))
	}
	copy(v[:], vals)
	return v, nil
}

// QuatFrom copies a four element slice, as read from config.
func QuatFrom(vals []float64) (Quat, error) {
	var q Quat
	if len(vals) != len(q) {
		return q, fmt.Errorf("rotation needs %d components, got %d", len(q), len(vals))
	}
	copy(q[:], vals)
	return q, nil
}

// Object is one record of the store's objects array. Shape fields are set
// according to Type: Box has length, width and height; Cylinder radius and
// height; Sphere radius.
type Object struct {
	ID       int     `json:"id"`
	Type     string  `json:"type"`
	Position Vec3    `json:"position"`
	Rotation Quat    `json:"rotation"`
	Length   float64 `json:"length,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Radius   float64 `json:"radius,omitempty"`
}

// Bridge evaluates store reads and mutations in a page.
type Bridge struct {
	eval Evaluator
	hook string
}

// New returns a Bridge on hook. An empty hook means DefaultHook.
func New(eval Evaluator, hook string) (*Bridge, error) {
	hook = strings.TrimSpace(hook)
	if hook == "" {
		hook = DefaultHook
	}
	if !hookPattern.MatchString(hook) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHook, hook)
	}
	return &Bridge{eval: eval, hook: hook}, nil
}

func (b *Bridge) Hook() string { return b.hook }

func (b *Bridge) state() string {
	return "window." + b.hook + ".getState()"
}

// UpdatePlacementExpr is the expression UpdatePlacement evaluates.
func (b *Bridge) UpdatePlacementExpr(id int, pos Vec3, rot Quat) string {
	return fmt.Sprintf("void %s.updatePlacement(%d, %s, %s)", b.state(), id, jsArray(pos[:]), jsArray(rot[:]))
}

// PositionExpr is the expression Position evaluates.
func (b *Bridge) PositionExpr(id int) string {
	return fmt.Sprintf("%s.objects.find(o => o.id === %d)?.position", b.state(), id)
}

// UpdatePlacement calls the store's updatePlacement action. The action has
// no result; whether it took effect is checked by reading Position.
func (b *Bridge) UpdatePlacement(ctx context.Context, id int, pos Vec3, rot Quat) error {
	if _, err := b.eval.Evaluate(ctx, b.UpdatePlacementExpr(id, pos, rot)); err != nil {
		return fmt.Errorf("update placement of object %d: %w", id, err)
	}
	return nil
}

// Position reads the position of object id. It returns nil without error
// when the store holds no such object.
func (b *Bridge) Position(ctx context.Context, id int) (*Vec3, error) {
	raw, err := b.eval.Evaluate(ctx, b.PositionExpr(id))
	if err != nil {
		return nil, fmt.Errorf("read position of object %d: %w", id, err)
	}
	if isUndefined(raw) {
		return nil, nil
	}
	var vals []float64
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil, fmt.Errorf("read position of object %d: %w: %s", id, ErrShape, raw)
	}
	v, err := Vec3From(vals)
	if err != nil {
		return nil, fmt.Errorf("read position of object %d: %w: %v", id, ErrShape, err)
	}
	return &v, nil
}

// Objects lists every object in the store in insertion order.
func (b *Bridge) Objects(ctx context.Context) ([]Object, error) {
	raw, err := b.eval.Evaluate(ctx, b.state()+".objects")
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	if isUndefined(raw) {
		return nil, fmt.Errorf("list objects: %w: objects is undefined", ErrShape)
	}
	var objs []Object
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil, fmt.Errorf("list objects: %w: %v", ErrShape, err)
	}
	return objs, nil
}

// Ready reports whether the hook is installed and the geometry core has
// finished initialising.
func (b *Bridge) Ready(ctx context.Context) (bool, error) {
	expr := fmt.Sprintf("(() => { const h = window.%s; return !!(h && h.getState().wasm); })()", b.hook)
	raw, err := b.eval.Evaluate(ctx, expr)
	if err != nil {
		return false, fmt.Errorf("check store readiness: %w", err)
	}
	var ready bool
	if isUndefined(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, &ready); err != nil {
		return false, fmt.Errorf("check store readiness: %w: %s", ErrShape, raw)
	}
	return ready, nil
}

// Find returns the object with id from objs.
func Find(objs []Object, id int) (Object, bool) {
	for _, o := range objs {
		if o.ID == id {
			return o, true
		}
	}
	return Object{}, false
}

func isUndefined(raw json.RawMessage) bool {
	return len(raw) == 0
}

func jsArray(vals []float64) string {
	parts := make([]string, len(vals))
	for i, f := range vals {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
