package config

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/wippyai/hostbridge/errors"
)

type cache struct {
	values map[reflect.Type]any
	onces  map[reflect.Type]*sync.Once
	mu     sync.RWMutex
}

var (
	loaded = &cache{
		values: make(map[reflect.Type]any),
		onces:  make(map[reflect.Type]*sync.Once),
	}

	defaultEnvLoaded sync.Once
)

// Load parses environment variables into v using env struct tags. A .env
// file in the working directory is read once, without overriding variables
// already set. Each config type is parsed once; later calls copy the cached
// value.
//
//	var cfg opensearch.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// a missing .env is fine
		_ = godotenv.Load()
	})
	if v == nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, ErrNilPointer, "load config")
	}

	key := typeKey[T]()
	if cached, ok := loaded.get(key); ok {
		*v = cached.(T)
		return nil
	}

	loaded.mu.Lock()
	once, ok := loaded.onces[key]
	if !ok {
		once = new(sync.Once)
		loaded.onces[key] = once
	}
	loaded.mu.Unlock()

	var err error
	once.Do(func() {
		if perr := env.Parse(v); perr != nil {
			err = perr
			return
		}
		loaded.mu.Lock()
		loaded.values[key] = *v
		loaded.mu.Unlock()
	})
	if err != nil {
		// let a later call retry once the environment is fixed
		loaded.mu.Lock()
		delete(loaded.onces, key)
		loaded.mu.Unlock()
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			GoType(key.String()).
			Cause(stderrors.Join(ErrParsingConfig, err)).
			Detail("parse environment").
			Build()
	}

	if cached, ok := loaded.get(key); ok {
		*v = cached.(T)
		return nil
	}
	return errors.Wrap(errors.PhaseConfig, errors.KindNotFound, ErrConfigNotLoaded, key.String())
}

// MustLoad is Load that panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Reload drops the cached value for T and parses the environment again.
func Reload[T any](v *T) error {
	key := typeKey[T]()
	loaded.mu.Lock()
	delete(loaded.values, key)
	delete(loaded.onces, key)
	loaded.mu.Unlock()
	return Load(v)
}

// LoadEnv reads the given env files into the process environment. Later
// files override earlier ones. Cached configs are dropped.
func LoadEnv(paths ...string) error {
	if err := godotenv.Overload(paths...); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "load env files")
	}
	ResetCache()
	return nil
}

// ResetCache forgets every loaded config.
func ResetCache() {
	loaded.mu.Lock()
	defer loaded.mu.Unlock()
	loaded.values = make(map[reflect.Type]any)
	loaded.onces = make(map[reflect.Type]*sync.Once)
}

func (c *cache) get(key reflect.Type) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
