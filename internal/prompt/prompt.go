// Package prompt is a terminal save surface: it asks where a converted file
// should be written.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/nicholasgasior/officeconv"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

// SavePicker asks for a destination path in the terminal.
type SavePicker struct {
	dir        string
	fs         afero.Fs
	accessible bool
	ask        func(ctx context.Context, title, description string, path *string) error
}

// Option configures a SavePicker.
type Option func(*SavePicker)

// WithAccessible switches huh to its screen-reader friendly mode.
func WithAccessible(on bool) Option {
	return func(p *SavePicker) { p.accessible = on }
}

// WithFS sets the filesystem chosen files are written to.
func WithFS(fs afero.Fs) Option {
	return func(p *SavePicker) { p.fs = fs }
}

// New returns a picker suggesting paths under dir.
func New(dir string, opts ...Option) *SavePicker {
	p := &SavePicker{dir: dir, fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(p)
	}
	p.ask = p.runForm
	return p
}

// Available reports whether stdin and stdout are terminals, which the form
// needs.
func Available() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// ShowSaveFilePicker asks for a destination, pre-filled with the suggested
// name. Dismissing the form returns officeconv.ErrSaveAborted.
func (p *SavePicker) ShowSaveFilePicker(ctx context.Context, opts officeconv.SaveFilePickerOptions) (officeconv.FileHandle, error) {
	path := filepath.Join(p.dir, opts.SuggestedName)
	if err := p.ask(ctx, "Save "+opts.SuggestedName, describe(opts.Types), &path); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, officeconv.ErrSaveAborted
		}
		return nil, err
	}
	return &fileHandle{fs: p.fs, path: path}, nil
}

func (p *SavePicker) runForm(ctx context.Context, title, description string, path *string) error {
	input := huh.NewInput().
		Title(title).
		Description(description).
		Value(path).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("a file name is required")
			}
			return nil
		})
	return huh.NewForm(huh.NewGroup(input)).
		WithAccessible(p.accessible).
		RunWithContext(ctx)
}

// describe renders accept types as "Word Document (.docx, application/...)".
func describe(types []officeconv.FilePickerAcceptType) string {
	var parts []string
	for _, t := range types {
		mimes := make([]string, 0, len(t.Accept))
		for m := range t.Accept {
			mimes = append(mimes, m)
		}
		sort.Strings(mimes)
		for _, m := range mimes {
			parts = append(parts, fmt.Sprintf("%s (%s, %s)", t.Description, strings.Join(t.Accept[m], " "), m))
		}
	}
	return strings.Join(parts, "; ")
}

type fileHandle struct {
	fs   afero.Fs
	path string
}

func (h *fileHandle) CreateWritable(context.Context) (io.WriteCloser, error) {
	if dir := filepath.Dir(h.path); dir != "." {
		if err := h.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return h.fs.Create(h.path)
}
