// Package storage persists device configuration in fixed-size pages, the
// way the controller's EEPROM is organized: one record per page, each
// versioned by a magic word so absent or corrupt data falls back to
// defaults.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Page geometry.
const (
	PageSize     = 256
	WordsPerPage = PageSize / 4
	NumPages     = 4
)

// Page numbers of the records.
const (
	CalibrationPage     = 1
	UserCalibrationPage = 2
	ConfigPage          = 3
)

// ErrPageRange is returned for page numbers outside the store.
var ErrPageRange = errors.New("page number out of range")

// Page is the raw content of one page.
type Page [PageSize]byte

// Word returns the little-endian 32-bit word at index i.
func (p *Page) Word(i int) uint32 {
	return binary.LittleEndian.Uint32(p[i*4:])
}

// SetWord stores v as the little-endian 32-bit word at index i.
func (p *Page) SetWord(i int, v uint32) {
	binary.LittleEndian.PutUint32(p[i*4:], v)
}

// PageStore reads and writes whole pages. A page that was never written
// reads as all zeros.
type PageStore interface {
	ReadPage(n int) (Page, error)
	WritePage(n int, p Page) error
}

func checkPage(n int) error {
	if n < 0 || n >= NumPages {
		return fmt.Errorf("page %d: %w", n, ErrPageRange)
	}
	return nil
}

// MemStore is an in-memory PageStore.
type MemStore struct {
	mu     sync.Mutex
	pages  [NumPages]Page
	Writes int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// ReadPage returns a copy of page n.
func (m *MemStore) ReadPage(n int) (Page, error) {
	if err := checkPage(n); err != nil {
		return Page{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[n], nil
}

// WritePage replaces page n.
func (m *MemStore) WritePage(n int, p Page) error {
	if err := checkPage(n); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[n] = p
	m.Writes++
	return nil
}

// FileStore keeps all pages in one file of NumPages*PageSize bytes.
// A missing or short file reads as zeros.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) load() ([NumPages * PageSize]byte, error) {
	var buf [NumPages * PageSize]byte
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return buf, nil
		}
		return buf, fmt.Errorf("read %s: %w", f.path, err)
	}
	copy(buf[:], data)
	return buf, nil
}

// ReadPage returns page n.
func (f *FileStore) ReadPage(n int) (Page, error) {
	if err := checkPage(n); err != nil {
		return Page{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	buf, err := f.load()
	if err != nil {
		return Page{}, err
	}
	var p Page
	copy(p[:], buf[n*PageSize:])
	return p, nil
}

// WritePage replaces page n. The file is rewritten atomically.
func (f *FileStore) WritePage(n int, p Page) error {
	if err := checkPage(n); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	buf, err := f.load()
	if err != nil {
		return err
	}
	copy(buf[n*PageSize:], p[:])

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf[:], 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
