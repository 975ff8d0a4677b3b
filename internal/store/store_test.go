package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeEval struct {
	exprs   []string
	results map[string]json.RawMessage
	err     error
}

func (f *fakeEval) Evaluate(_ context.Context, expr string) (json.RawMessage, error) {
	f.exprs = append(f.exprs, expr)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[expr], nil
}

func mustBridge(t *testing.T, eval Evaluator, hook string) *Bridge {
	t.Helper()
	b, err := New(eval, hook)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestNewDefaultsHook(t *testing.T) {
	b := mustBridge(t, &fakeEval{}, "  ")
	if b.Hook() != DefaultHook {
		t.Fatalf("hook = %q", b.Hook())
	}
}

func TestNewRejectsNonIdentifierHook(t *testing.T) {
	for _, hook := range []string{"use-store", "a;alert(1)", "1abc", "window.x"} {
		if _, err := New(&fakeEval{}, hook); !errors.Is(err, ErrInvalidHook) {
			t.Errorf("New(%q) err = %v, want ErrInvalidHook", hook, err)
		}
	}
}

func TestUpdatePlacementExpression(t *testing.T) {
	f := &fakeEval{}
	b := mustBridge(t, f, "")

	if err := b.UpdatePlacement(context.Background(), 1, Vec3{5, 0, 0}, Identity); err != nil {
		t.Fatalf("UpdatePlacement: %v", err)
	}
	want := "void window.useCADStore.getState().updatePlacement(1, [5,0,0], [0,0,0,1])"
	if len(f.exprs) != 1 || f.exprs[0] != want {
		t.Fatalf("evaluated %q, want %q", f.exprs, want)
	}
}

func TestUpdatePlacementFractionalValues(t *testing.T) {
	b := mustBridge(t, &fakeEval{}, "")
	got := b.UpdatePlacementExpr(7, Vec3{-1.5, 0.25, 1e3}, Quat{0, 0.7071, 0, 0.7071})
	want := "void window.useCADStore.getState().updatePlacement(7, [-1.5,0.25,1000], [0,0.7071,0,0.7071])"
	if got != want {
		t.Fatalf("expr = %q, want %q", got, want)
	}
}

func TestUpdatePlacementPropagatesError(t *testing.T) {
	boom := errors.New("TypeError: cannot read properties of undefined")
	b := mustBridge(t, &fakeEval{err: boom}, "")
	err := b.UpdatePlacement(context.Background(), 1, Vec3{}, Identity)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestPosition(t *testing.T) {
	b := mustBridge(t, nil, "")
	expr := b.PositionExpr(1)
	if expr != "window.useCADStore.getState().objects.find(o => o.id === 1)?.position" {
		t.Fatalf("PositionExpr = %q", expr)
	}

	cases := []struct {
		name    string
		raw     json.RawMessage
		want    *Vec3
		wantErr bool
	}{
		{name: "present", raw: json.RawMessage(`[5,0,0]`), want: &Vec3{5, 0, 0}},
		{name: "missing object", raw: nil, want: nil},
		{name: "null", raw: json.RawMessage(`null`), wantErr: true},
		{name: "wrong length", raw: json.RawMessage(`[1,2]`), wantErr: true},
		{name: "not an array", raw: json.RawMessage(`"x"`), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeEval{results: map[string]json.RawMessage{expr: tc.raw}}
			b := mustBridge(t, f, "")
			got, err := b.Position(context.Background(), 1)
			if tc.wantErr {
				if !errors.Is(err, ErrShape) {
					t.Fatalf("err = %v, want ErrShape", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Position: %v", err)
			}
			if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
				t.Fatalf("Position = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestObjects(t *testing.T) {
	raw := json.RawMessage(`[
		{"id":1,"type":"Box","length":10,"width":10,"height":10,"position":[5,0,0],"rotation":[0,0,0,1]},
		{"id":2,"type":"Sphere","radius":3,"position":[0,0,0],"rotation":[0,0,0,1]}
	]`)
	f := &fakeEval{results: map[string]json.RawMessage{"window.cad.getState().objects": raw}}
	b := mustBridge(t, f, "cad")

	objs, err := b.Objects(context.Background())
	if err != nil {
		t.Fatalf("Objects: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("got %d objects", len(objs))
	}
	box, ok := Find(objs, 1)
	if !ok || box.Type != "Box" || box.Position != (Vec3{5, 0, 0}) || box.Length != 10 {
		t.Fatalf("box = %+v", box)
	}
	if sphere, _ := Find(objs, 2); sphere.Radius != 3 || sphere.Rotation != Identity {
		t.Fatalf("sphere = %+v", sphere)
	}
	if _, ok := Find(objs, 9); ok {
		t.Fatal("Find(9) should miss")
	}
}

func TestObjectsUndefinedHook(t *testing.T) {
	b := mustBridge(t, &fakeEval{}, "")
	if _, err := b.Objects(context.Background()); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
}

func TestReady(t *testing.T) {
	for _, tc := range []struct {
		raw  json.RawMessage
		want bool
	}{
		{json.RawMessage(`true`), true},
		{json.RawMessage(`false`), false},
		{nil, false},
	} {
		f := &fakeEval{}
		b := mustBridge(t, f, "")
		f.results = map[string]json.RawMessage{}
		// Capture the expression on first call, then answer it.
		_, _ = b.Ready(context.Background())
		f.results[f.exprs[0]] = tc.raw
		got, err := b.Ready(context.Background())
		if err != nil || got != tc.want {
			t.Errorf("Ready(%s) = %v, %v", tc.raw, got, err)
		}
	}
}

func TestVecFormatting(t *testing.T) {
	if got := (Vec3{5, 0, 0}).String(); got != "[5, 0, 0]" {
		t.Fatalf("Vec3.String = %q", got)
	}
	if got := Identity.String(); got != "[0, 0, 0, 1]" {
		t.Fatalf("Quat.String = %q", got)
	}
	if _, err := Vec3From([]float64{1}); err == nil {
		t.Fatal("Vec3From should reject short input")
	}
	if q, err := QuatFrom([]float64{0, 0, 0, 1}); err != nil || q != Identity {
		t.Fatalf("QuatFrom = %v, %v", q, err)
	}
}
