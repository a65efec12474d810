package wasmhost

import (
	"context"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/eventloop"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/resource"
)

const (
	typeInstance uint32 = iota + 1
	typeExport
)

// Config holds configuration for runtime creation.
type Config struct {
	// MemoryLimitPages caps memory per instance in 64KB pages. 0 keeps
	// wazero's default.
	MemoryLimitPages uint32
}

// Runtime is a host runtime backed by wazero. Module instances are
// containers and their exported functions are callables. Calls run on the
// runtime's event loop and their tokens settle on the next microtask.
type Runtime struct {
	wz        wazero.Runtime
	loop      *eventloop.Loop
	table     *resource.UnifiedTable
	closeOnce sync.Once
}

var _ host.Runtime = (*Runtime)(nil)

type instance struct {
	mod     api.Module
	sigs    map[string]*host.Signature
	exports map[string]resource.Handle
	name    string
	ref     resource.Handle
}

// Drop closes the module when its handle is released.
func (i *instance) Drop() {
	if err := i.mod.Close(context.Background()); err != nil {
		Logger().Debug("close module", zap.String("module", i.name), zap.Error(err))
	}
}

type export struct {
	fn   api.Function
	inst *instance
	sig  *host.Signature
	name string
	ref  resource.Handle
}

// New creates a runtime. cfg may be nil.
func New(ctx context.Context, cfg *Config) *Runtime {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	return &Runtime{
		wz:    wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		loop:  eventloop.New(eventloop.WithName("wasm")),
		table: resource.NewTable(),
	}
}

// Done is closed once the runtime's loop has stopped.
func (r *Runtime) Done() <-chan struct{} {
	return r.loop.Done()
}

// Close stops the loop, closes every instance and releases wazero.
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.loop.Close()
		r.table.Close()
		err = r.wz.Close(context.Background())
	})
	return err
}

func (r *Runtime) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.table.Closed() {
		return errors.Closed(errors.PhaseRuntime, "wasm runtime")
	}
	return r.loop.Do(ctx, fn)
}

// Instantiate compiles and instantiates a core module. witText optionally
// declares WIT signatures for exports ("name: func(n: s32) -> s32;");
// undeclared exports take the signature implied by their core types.
func (r *Runtime) Instantiate(ctx context.Context, name string, wasm []byte, witText string) (host.Handle, error) {
	sigs, err := parseDeclarations(witText)
	if err != nil {
		return host.Handle{}, err
	}

	var h host.Handle
	err = r.do(ctx, func(ctx context.Context) error {
		compiled, err := r.wz.CompileModule(ctx, wasm)
		if err != nil {
			return errors.Wrap(errors.PhaseRuntime, errors.KindInvalidData, err, "compile module "+name)
		}
		mod, err := r.wz.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
		if err != nil {
			return errors.Wrap(errors.PhaseRuntime, errors.KindInvalidData, err, "instantiate module "+name)
		}

		inst := &instance{
			mod:     mod,
			sigs:    sigs,
			exports: make(map[string]resource.Handle),
			name:    name,
		}
		inst.ref = r.table.Insert(typeInstance, inst)
		if inst.ref == 0 {
			inst.Drop()
			return errors.Closed(errors.PhaseRuntime, "wasm runtime")
		}
		h = host.Handle{Ref: inst.ref, Name: name}
		Logger().Debug("instantiated module", zap.String("module", name), zap.Int("declared", len(sigs)))
		return nil
	})
	return h, err
}

// Release closes an instance. Handles to it and its exports stop resolving.
func (r *Runtime) Release(ctx context.Context, h host.Handle) error {
	return r.do(ctx, func(context.Context) error {
		inst, ok := resource.GetAs[*instance](r.table, h.Ref, typeInstance)
		if !ok {
			return errors.NotFound(errors.PhaseResolve, "instance", h.Name)
		}
		for _, ref := range inst.exports {
			r.table.Remove(ref)
		}
		if _, ok := r.table.Remove(inst.ref); !ok {
			return errors.InvalidInput(errors.PhaseRuntime, "instance is in use: "+inst.name)
		}
		return nil
	})
}

func (r *Runtime) instance(h host.Handle) (*instance, error) {
	if r.table.Closed() {
		return nil, errors.Closed(errors.PhaseRuntime, "wasm runtime")
	}
	inst, ok := resource.GetAs[*instance](r.table, h.Ref, typeInstance)
	if !ok {
		return nil, errors.NotFound(errors.PhaseResolve, "instance", h.Name)
	}
	return inst, nil
}

// Resolve implements host.Runtime.
func (r *Runtime) Resolve(ctx context.Context, container host.Handle, name string, expect *host.Signature) (host.Handle, error) {
	var h host.Handle
	err := r.do(ctx, func(context.Context) error {
		inst, err := r.instance(container)
		if err != nil {
			return err
		}
		exp, err := r.export(inst, name)
		if err != nil {
			return err
		}
		if err := host.Match(name, expect, exp.sig); err != nil {
			return err
		}
		h = host.Handle{
			Ref:       exp.ref,
			Container: inst.ref,
			Name:      name,
			Sig:       exp.sig,
			Mode:      host.BindNamed,
		}
		return nil
	})
	return h, err
}

// export returns the arena entry for an exported function, creating it on
// first lookup.
func (r *Runtime) export(inst *instance, name string) (*export, error) {
	if ref, ok := inst.exports[name]; ok {
		if exp, ok := resource.GetAs[*export](r.table, ref, typeExport); ok {
			return exp, nil
		}
	}

	fn := inst.mod.ExportedFunction(name)
	if fn == nil {
		if inst.mod.ExportedGlobal(name) != nil {
			return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
				Path(name).
				Detail("export %q of %s is a global, not a function", name, inst.name).
				Build()
		}
		return nil, errors.NotFound(errors.PhaseResolve, "callable", name)
	}

	def := fn.Definition()
	sig, declared := inst.sigs[name]
	if !declared {
		sig = coreSignature(def)
	} else if err := checkLowering(name, sig, def); err != nil {
		return nil, err
	}

	exp := &export{fn: fn, inst: inst, sig: sig, name: name}
	exp.ref = r.table.Insert(typeExport, exp)
	if exp.ref == 0 {
		return nil, errors.Closed(errors.PhaseRuntime, "wasm runtime")
	}
	inst.exports[name] = exp.ref
	return exp, nil
}

// Bind implements host.Runtime.
func (r *Runtime) Bind(ctx context.Context, callable host.Handle, expect *host.Signature) (host.Handle, error) {
	var h host.Handle
	err := r.do(ctx, func(context.Context) error {
		if r.table.Closed() {
			return errors.Closed(errors.PhaseRuntime, "wasm runtime")
		}
		exp, ok := resource.GetAs[*export](r.table, callable.Ref, typeExport)
		if !ok {
			return errors.NotFound(errors.PhaseResolve, "callable", callable.Name)
		}
		if err := host.Match(exp.name, expect, exp.sig); err != nil {
			return err
		}
		h = host.Handle{Ref: exp.ref, Name: exp.name, Sig: exp.sig, Mode: host.BindDirect}
		return nil
	})
	return h, err
}

// Invoke implements host.Runtime. The export runs to completion on the
// loop; a trap is an invocation error.
func (r *Runtime) Invoke(ctx context.Context, h host.Handle, args ...any) (*host.Token, error) {
	if !h.Callable() {
		return nil, errors.NotFound(errors.PhaseInvoke, "callable", h.String())
	}
	args = host.NormalizeArgs(args)

	var tok *host.Token
	err := r.do(ctx, func(ctx context.Context) error {
		exp, ok := resource.GetAs[*export](r.table, h.Ref, typeExport)
		if !ok {
			return errors.NotFound(errors.PhaseInvoke, "callable", h.Name)
		}
		if h.Mode == host.BindNamed {
			if _, err := r.instance(host.Handle{Ref: h.Container, Name: exp.inst.name}); err != nil {
				return err
			}
		}

		sig := exp.sig
		if err := sig.CheckArgs(h.Name, args); err != nil {
			return err
		}

		params := make([]uint64, len(args))
		for i, a := range args {
			raw, err := lower(a, sig.Params[i].Type, sig.Params[i].Name)
			if err != nil {
				return errors.Invocation(h.Name, err)
			}
			params[i] = raw
		}

		raw, err := exp.fn.Call(ctx, params...)
		if err != nil {
			return errors.Invocation(h.Name, err)
		}

		tok = host.NewToken(r.loop, h.Name)
		switch len(sig.Results) {
		case 0:
			tok.Resolve(nil)
		case 1:
			tok.Resolve(lift(raw[0], sig.Results[0]))
		default:
			out := make([]any, len(sig.Results))
			for i, t := range sig.Results {
				out[i] = lift(raw[i], t)
			}
			tok.Resolve(out)
		}
		return nil
	})
	if err != nil {
		Logger().Debug("invoke failed", zap.String("export", h.Name), zap.Error(err))
		return nil, err
	}
	return tok, nil
}

// parseDeclarations reads WIT function declarations, one per statement.
func parseDeclarations(witText string) (map[string]*host.Signature, error) {
	sigs := make(map[string]*host.Signature)
	for _, stmt := range strings.FieldsFunc(witText, func(r rune) bool { return r == ';' || r == '\n' }) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "//") {
			continue
		}
		stmt = strings.TrimSpace(strings.TrimPrefix(stmt, "export "))
		name, sig, err := host.ParseSignature(stmt)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, errors.InvalidInput(errors.PhaseParse, "declaration without a name: "+stmt)
		}
		sigs[name] = sig
	}
	return sigs, nil
}
