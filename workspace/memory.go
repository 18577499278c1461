package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// MemoryOption configures NewMemory.
type MemoryOption func(*Memory)

func WithLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if l != nil {
			m.log = l
		}
	}
}

// Memory is an in-memory View driven by the host.
type Memory struct {
	mu      sync.RWMutex
	docs    map[DocumentID]Document
	folders []string
	focused DocumentID

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Event)

	log *slog.Logger
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		docs: map[DocumentID]Document{},
		subs: map[int]func(Event){},
		log:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Memory) Document(id DocumentID) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	return d, ok
}

// Documents returns a snapshot of every open document.
func (m *Memory) Documents() []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Document) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (m *Memory) Subscribe(fn func(Event)) func() {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

func (m *Memory) emit(ev Event) {
	m.subMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Open adds a document. Re-opening an open document replaces it.
func (m *Memory) Open(uri, languageID string, version int, text string) Document {
	d := Document{ID: DocumentID(uri), LanguageID: languageID, Version: version, Text: text}
	m.mu.Lock()
	m.docs[d.ID] = d
	m.mu.Unlock()
	m.emit(Event{Kind: EventOpen, Document: d})
	return d
}

// Update replaces the text of an open document and marks it dirty.
func (m *Memory) Update(id DocumentID, version int, text string) error {
	return m.change(id, func(d *Document) {
		d.Version = version
		d.Text = text
		d.Dirty = true
	}, true)
}

// SetCursor moves the cursor of an open document. It does not emit an event.
func (m *Memory) SetCursor(id DocumentID, p Position) error {
	return m.change(id, func(d *Document) { d.Cursor = p }, false)
}

// MarkSaved clears the dirty flag, for example after the host saved the
// document to disk.
func (m *Memory) MarkSaved(id DocumentID) error {
	return m.change(id, func(d *Document) { d.Dirty = false }, false)
}

func (m *Memory) change(id DocumentID, fn func(*Document), notify bool) error {
	m.mu.Lock()
	d, ok := m.docs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDocument, id)
	}
	fn(&d)
	m.docs[id] = d
	m.mu.Unlock()
	if notify {
		m.emit(Event{Kind: EventChange, Document: d})
	}
	return nil
}

func (m *Memory) Close(id DocumentID) error {
	m.mu.Lock()
	d, ok := m.docs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDocument, id)
	}
	delete(m.docs, id)
	if m.focused == id {
		m.focused = ""
	}
	m.mu.Unlock()
	m.emit(Event{Kind: EventClose, Document: d})
	return nil
}

func (m *Memory) Focus(id DocumentID) error {
	m.mu.Lock()
	d, ok := m.docs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDocument, id)
	}
	m.focused = id
	m.mu.Unlock()
	m.emit(Event{Kind: EventFocus, Document: d})
	return nil
}

// Focused returns the focused document, if any.
func (m *Memory) Focused() (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.focused == "" {
		return Document{}, false
	}
	d, ok := m.docs[m.focused]
	return d, ok
}

// SetFolders replaces the workspace folders and emits the difference.
func (m *Memory) SetFolders(folders []string) {
	next := make([]string, 0, len(folders))
	for _, f := range folders {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		if !slices.Contains(next, f) {
			next = append(next, f)
		}
	}

	m.mu.Lock()
	prev := m.folders
	m.folders = next
	m.mu.Unlock()

	var added, removed []string
	for _, f := range next {
		if !slices.Contains(prev, f) {
			added = append(added, f)
		}
	}
	for _, f := range prev {
		if !slices.Contains(next, f) {
			removed = append(removed, f)
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	m.emit(Event{Kind: EventFoldersChanged, Added: added, Removed: removed})
}

func (m *Memory) Folders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.folders)
}

// WatchFolders watches the workspace folders and the directories of open
// file documents. When a clean open document changes on disk it is reloaded
// and a change event is emitted; dirty documents are left alone. It blocks
// until ctx is done.
func (m *Memory) WatchFolders(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	watched := map[string]bool{}
	add := func(dir string) {
		if dir == "" || watched[dir] {
			return
		}
		if err := w.Add(dir); err != nil {
			m.log.Debug("workspace.watch.add.fail", slog.String("dir", dir), slog.String("err", err.Error()))
			return
		}
		watched[dir] = true
	}
	remove := func(dir string) {
		if !watched[dir] {
			return
		}
		_ = w.Remove(dir)
		delete(watched, dir)
	}

	events := make(chan Event, 16)
	cancel := m.Subscribe(func(ev Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer cancel()

	for _, f := range m.Folders() {
		add(f)
	}
	for _, d := range m.Documents() {
		if p, ok := d.Path(); ok {
			add(filepath.Dir(p))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			switch ev.Kind {
			case EventOpen:
				if p, ok := ev.Document.Path(); ok {
					add(filepath.Dir(p))
				}
			case EventFoldersChanged:
				for _, f := range ev.Added {
					add(f)
				}
				for _, f := range ev.Removed {
					remove(f)
				}
			}
		case fev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if fev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m.reload(fev.Name)
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Debug("workspace.watch.err", slog.String("err", werr.Error()))
		}
	}
}

func (m *Memory) reload(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	id := DocumentID(FileURI(path))
	d, ok := m.Document(id)
	if !ok || d.Dirty {
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		m.log.Debug("workspace.reload.read.fail", slog.String("path", path), slog.String("err", err.Error()))
		return
	}
	if string(b) == d.Text {
		return
	}

	m.mu.Lock()
	cur, ok := m.docs[id]
	if !ok || cur.Dirty || cur.Version != d.Version {
		m.mu.Unlock()
		return
	}
	cur.Text = string(b)
	cur.Version++
	m.docs[id] = cur
	m.mu.Unlock()

	m.log.Debug("workspace.reload.ok", slog.String("doc", string(id)), slog.Int("version", cur.Version))
	m.emit(Event{Kind: EventChange, Document: cur})
}

var _ View = (*Memory)(nil)
