package wasmhost

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
)

// counterWASM exports increment (i32) -> i32, boom () which traps, and an
// immutable i32 global named counter.
var counterWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version

	// type section: (i32) -> i32, () -> ()
	0x01, 0x09, 0x02,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x60, 0x00, 0x00,

	// function section
	0x03, 0x03, 0x02, 0x00, 0x01,

	// global section: i32 const 0
	0x06, 0x06, 0x01, 0x7f, 0x00, 0x41, 0x00, 0x0b,

	// export section
	0x07, 0x1e, 0x03,
	0x09, 'i', 'n', 'c', 'r', 'e', 'm', 'e', 'n', 't', 0x00, 0x00,
	0x04, 'b', 'o', 'o', 'm', 0x00, 0x01,
	0x07, 'c', 'o', 'u', 'n', 't', 'e', 'r', 0x03, 0x00,

	// code section
	0x0a, 0x0d, 0x02,
	0x07, 0x00, 0x20, 0x00, 0x41, 0x01, 0x6a, 0x0b, // local.get 0; i32.const 1; i32.add
	0x03, 0x00, 0x00, 0x0b, // unreachable
}

func newRuntime(t *testing.T, witText string) (*Runtime, host.Handle) {
	t.Helper()
	SetLogger(zaptest.NewLogger(t))
	t.Cleanup(func() { SetLogger(nil) })

	ctx := context.Background()
	rt := New(ctx, &Config{MemoryLimitPages: 16})
	t.Cleanup(func() { rt.Close() })

	inst, err := rt.Instantiate(ctx, "counter", counterWASM, witText)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return rt, inst
}

func settle(t *testing.T, tok *host.Token) host.Settlement {
	t.Helper()
	ch := make(chan host.Settlement, 1)
	tok.OnSettle(func(s host.Settlement) { ch <- s })
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("token never settled")
		return host.Settlement{}
	}
}

func TestRuntime_Increment(t *testing.T) {
	rt, inst := newRuntime(t, "")
	ctx := context.Background()

	h, err := rt.Resolve(ctx, inst, "increment", host.Func(wit.S32{}).Returns(wit.S32{}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	tok, err := rt.Invoke(ctx, h, 99)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	s := settle(t, tok)
	if s.State != host.Resolved || s.Value != int32(100) {
		t.Fatalf("settlement = %+v", s)
	}
}

func TestRuntime_InvokeCanceled(t *testing.T) {
	rt, inst := newRuntime(t, "")

	h, err := rt.Resolve(context.Background(), inst, "increment", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rt.Invoke(ctx, h, 1)
	if !stderrors.Is(err, errors.ErrCanceled) {
		t.Fatalf("Invoke = %v, want canceled", err)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestRuntime_DeclaredSignature(t *testing.T) {
	rt, inst := newRuntime(t, `
		// unsigned view of the same export
		export increment: func(n: u32) -> u32;
	`)
	ctx := context.Background()

	h, err := rt.Resolve(ctx, inst, "increment", host.MustSignature("func(n: u32) -> u32"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tok, err := rt.Invoke(ctx, h, uint32(41))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if s := settle(t, tok); s.Value != uint32(42) {
		t.Fatalf("Value = %#v", s.Value)
	}

	if _, err := rt.Invoke(ctx, h, -1); !stderrors.Is(err, errors.ErrInvocation) {
		t.Fatalf("negative u32 = %v", err)
	}
}

func TestRuntime_DeclarationMustLower(t *testing.T) {
	tests := map[string]string{
		"string param": "increment: func(n: string) -> s32",
		"wide param":   "increment: func(n: s64) -> s32",
		"arity":        "increment: func(a: s32, b: s32) -> s32",
		"no result":    "increment: func(n: s32)",
	}
	for name, decl := range tests {
		t.Run(name, func(t *testing.T) {
			rt, inst := newRuntime(t, decl)
			_, err := rt.Resolve(context.Background(), inst, "increment", nil)
			if !stderrors.Is(err, errors.ErrTypeMismatch) {
				t.Fatalf("Resolve = %v, want type mismatch", err)
			}
		})
	}
}

func TestRuntime_ResolveErrors(t *testing.T) {
	rt, inst := newRuntime(t, "")
	ctx := context.Background()

	if _, err := rt.Resolve(ctx, inst, "missing", nil); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("missing = %v", err)
	}
	if _, err := rt.Resolve(ctx, inst, "counter", nil); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("global = %v", err)
	}
	_, err := rt.Resolve(ctx, inst, "increment", host.Func(wit.S64{}).Returns(wit.S64{}))
	if !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Fatalf("expectation mismatch = %v", err)
	}
}

func TestRuntime_TrapIsInvocationError(t *testing.T) {
	rt, inst := newRuntime(t, "")
	ctx := context.Background()

	h, err := rt.Resolve(ctx, inst, "boom", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tok, err := rt.Invoke(ctx, h)
	if tok != nil {
		t.Fatal("trap produced a token")
	}
	if !stderrors.Is(err, errors.ErrInvocation) {
		t.Fatalf("Invoke = %v, want invocation error", err)
	}
}

func TestRuntime_BindAndRelease(t *testing.T) {
	rt, inst := newRuntime(t, "")
	ctx := context.Background()

	named, _ := rt.Resolve(ctx, inst, "increment", nil)
	direct, err := rt.Bind(ctx, named, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if direct.Mode != host.BindDirect {
		t.Fatalf("Mode = %v", direct.Mode)
	}
	tok, err := rt.Invoke(ctx, direct, 1)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if s := settle(t, tok); s.Value != int32(2) {
		t.Fatalf("Value = %v", s.Value)
	}

	if err := rt.Release(ctx, inst); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := rt.Invoke(ctx, named, 1); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("named after release = %v", err)
	}
	if _, err := rt.Invoke(ctx, direct, 1); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("direct after release = %v", err)
	}
	if _, err := rt.Resolve(ctx, inst, "increment", nil); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("resolve after release = %v", err)
	}
}

func TestRuntime_Close(t *testing.T) {
	rt, inst := newRuntime(t, "")
	ctx := context.Background()

	h, _ := rt.Resolve(ctx, inst, "increment", nil)
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := rt.Invoke(ctx, h, 1); !stderrors.Is(err, errors.ErrClosed) {
		t.Fatalf("Invoke after close = %v", err)
	}
	if _, err := rt.Instantiate(ctx, "again", counterWASM, ""); !stderrors.Is(err, errors.ErrClosed) {
		t.Fatalf("Instantiate after close = %v", err)
	}
}

func TestRuntime_InvalidModule(t *testing.T) {
	rt, _ := newRuntime(t, "")
	_, err := rt.Instantiate(context.Background(), "broken", []byte{0x00, 0x61, 0x73}, "")
	if err == nil {
		t.Fatal("truncated module instantiated")
	}
	if _, err := rt.Instantiate(context.Background(), "decl", counterWASM, "func(n: s32)"); err == nil {
		t.Fatal("unnamed declaration accepted")
	}
}

func TestParseDeclarations(t *testing.T) {
	sigs, err := parseDeclarations(`
		export increment: func(n: s32) -> s32;
		boom: func()
	`)
	if err != nil {
		t.Fatalf("parseDeclarations: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("got %d declarations", len(sigs))
	}
	if got := sigs["increment"].String(); got != "func(n: s32) -> s32" {
		t.Fatalf("increment = %s", got)
	}
}
