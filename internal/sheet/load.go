package sheet

import (
	"context"
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/singleflight"
)

// Loader loads a Capability once. Concurrent first callers share a single
// attempt; a failed attempt is not cached.
type Loader struct {
	init func(ctx context.Context) (*Capability, error)

	mu     sync.Mutex
	loaded *Capability
	group  singleflight.Group
}

// NewLoader returns a Loader that runs init at most once successfully.
func NewLoader(init func(ctx context.Context) (*Capability, error)) *Loader {
	return &Loader{init: init}
}

// Load returns the capability, loading it on first use. ctx only bounds the
// caller's wait.
func (l *Loader) Load(ctx context.Context) (*Capability, error) {
	l.mu.Lock()
	if l.loaded != nil {
		c := l.loaded
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan("load", func() (any, error) {
		c, err := l.init(loadCtx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.loaded = c
		l.mu.Unlock()
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Capability), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var defaultLoader = NewLoader(load)

// Load returns the process-wide spreadsheet capability.
func Load(ctx context.Context) (*Capability, error) {
	return defaultLoader.Load(ctx)
}

// load checks that workbooks can be built and written before handing out
// the capability.
func load(context.Context) (*Capability, error) {
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.WriteToBuffer(); err != nil {
		return nil, fmt.Errorf("load spreadsheet library: %w", err)
	}
	return &Capability{}, nil
}
