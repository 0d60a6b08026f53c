// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package officeconv

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

const (
	scriptRelPath = "wasm/x2t/x2t.wasm"

	initFlightKey   = "initialize"
	scriptFlightKey = "script"
)

var errDestroyed = errors.New("X2T converter destroyed during initialization")

// State is the lifecycle state of a Converter's engine.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Bootstrap loads the engine's bootstrap script and exposes the engine
// module it defines.
type Bootstrap interface {
	Load(ctx context.Context, scriptPath string) error
	// Module returns the engine module defined by the loaded script, or nil.
	Module() EngineModule
}

// EngineModule is an engine that becomes usable once it reports readiness.
type EngineModule interface {
	EngineHandle
	// OnRuntimeInitialized registers the readiness callback. It is called at
	// most once.
	OnRuntimeInitialized(fn func())
	// OnRuntimeFailed registers a callback for a runtime that will never
	// become ready. It is called at most once, and never after readiness.
	OnRuntimeFailed(fn func(error))
	Close(ctx context.Context) error
}

// State reports the current lifecycle state.
func (c *Converter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ScriptPath is where the engine bootstrap script is loaded from.
func (c *Converter) ScriptPath() string {
	base := c.basePath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + scriptRelPath
}

// EnsureScriptLoaded loads the engine bootstrap script once. A failed load
// is retried by the next call.
func (c *Converter) EnsureScriptLoaded(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.scriptLoaded
	c.mu.Unlock()
	if loaded {
		return nil
	}

	_, err, _ := c.group.Do(scriptFlightKey, func() (any, error) {
		path := c.ScriptPath()
		if err := c.bootstrap.Load(ctx, path); err != nil {
			c.logger.Error("Failed to load X2T WASM script", slog.String("path", path), slog.Any("error", err))
			return nil, &ScriptLoadError{Path: path, Err: err}
		}
		c.mu.Lock()
		c.scriptLoaded = true
		c.mu.Unlock()
		c.logger.Info("X2T WASM script loaded successfully", slog.String("path", path))
		return nil, nil
	})
	return err
}

// Initialize returns the ready engine, loading it on first use. Concurrent
// callers share one initialization; a failed one is retried by the next
// call. ctx only bounds the caller's wait.
func (c *Converter) Initialize(ctx context.Context) (EngineHandle, error) {
	c.mu.Lock()
	if c.state == StateReady && c.engine != nil {
		h := c.engine
		c.mu.Unlock()
		return h, nil
	}
	c.state = StateLoading
	gen := c.generation
	c.mu.Unlock()

	initCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(initFlightKey, func() (any, error) {
		return c.doInitialize(initCtx, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(EngineHandle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Converter) doInitialize(ctx context.Context, gen uint64) (EngineHandle, error) {
	mod, err := c.startEngine(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		if mod != nil {
			_ = mod.Close(ctx)
		}
		return nil, errDestroyed
	}
	if err != nil {
		c.state = StateUninitialized
		return nil, err
	}

	c.engine = mod
	c.state = StateReady
	c.logger.Info("X2T module initialized successfully")
	return mod, nil
}

func (c *Converter) startEngine(ctx context.Context) (EngineModule, error) {
	if err := c.EnsureScriptLoaded(ctx); err != nil {
		return nil, err
	}

	mod := c.bootstrap.Module()
	if mod == nil {
		return nil, ErrEngineNotFound
	}

	// settled is the one-shot flag shared by the readiness callback, the
	// failure callback and the timer; whichever flips it first decides the
	// outcome.
	var settled atomic.Bool
	ready := make(chan struct{})
	failed := make(chan error, 1)
	mod.OnRuntimeFailed(func(err error) {
		if settled.CompareAndSwap(false, true) {
			failed <- err
		}
	})
	mod.OnRuntimeInitialized(func() {
		if settled.CompareAndSwap(false, true) {
			close(ready)
		}
	})

	timer := time.NewTimer(c.initTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case err := <-failed:
		return nil, c.abortStart(ctx, mod, err)
	case <-timer.C:
		if settled.CompareAndSwap(false, true) {
			_ = mod.Close(ctx)
			return nil, &InitializationTimeoutError{Timeout: c.initTimeout}
		}
		select {
		case <-ready:
		case err := <-failed:
			return nil, c.abortStart(ctx, mod, err)
		}
	}

	c.createWorkingDirectories(mod.FS())
	return mod, nil
}

func (c *Converter) abortStart(ctx context.Context, mod EngineModule, err error) error {
	c.logger.Error("X2T runtime failed to start", slog.Any("error", err))
	_ = mod.Close(ctx)
	return &EngineStartError{Err: err}
}

func (c *Converter) createWorkingDirectories(fs VirtualFS) {
	for _, dir := range workingDirs {
		if err := fs.Mkdir(dir, 0o755); err != nil {
			c.logger.Warn("Directory may already exist", slog.String("dir", dir), slog.Any("error", err))
		}
	}
}

// Destroy drops the engine and resets the converter so the next
// Initialize builds a fresh one.
func (c *Converter) Destroy() {
	c.mu.Lock()
	mod := c.engine
	c.engine = nil
	c.state = StateUninitialized
	c.generation++
	c.group.Forget(initFlightKey)
	c.mu.Unlock()

	if mod != nil {
		if err := mod.Close(context.Background()); err != nil {
			c.logger.Warn("Failed to close X2T module", slog.Any("error", err))
		}
	}
	c.logger.Info("X2T converter destroyed")
}
