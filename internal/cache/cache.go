// Package cache keeps successful front-end parses on disk so unchanged
// headers are not re-parsed.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"cbind/internal/cdecl"
	"cbind/internal/diag"
	"cbind/internal/frontend"
)

// Current schema version - increment when Payload format changes
const schemaVersion uint16 = 1

// Digest is a SHA-256 sum.
type Digest [sha256.Size]byte

// Payload is what one entry stores.
type Payload struct {
	Schema uint16
	// Front end that produced the unit
	Version string

	Unit        cdecl.Unit
	Diagnostics []diag.Diagnostic

	// Every file the unit was read from, with its content hash
	FilePaths  []string
	FileHashes []Digest
}

// Cache is a directory of msgpack entries keyed by request digest.
// Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Open creates dir if needed.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key digests everything that influences a parse.
func Key(version string, req frontend.Request) Digest {
	h := sha256.New()
	write := func(s string) {
		_, _ = io.WriteString(h, s)
		_, _ = h.Write([]byte{0})
	}
	write(fmt.Sprintf("schema=%d", schemaVersion))
	write(version)
	file := req.File
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}
	write(file)
	write(string(req.Language))
	for _, group := range [][]string{req.IncludePaths, req.SystemIncludePaths, req.Flags} {
		write(fmt.Sprintf("#%d", len(group)))
		for _, s := range group {
			write(s)
		}
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func (c *Cache) pathFor(key Digest) string {
	hexKey := hex.EncodeToString(key[:])
	// подкаталог по первым двум символам, чтобы не раздувать один каталог
	return filepath.Join(c.dir, hexKey[:2], hexKey+".mp")
}

// Put stores an error-free translation unit. Units with Error or Fatal
// diagnostics are never cached; such files must be re-parsed and skipped.
func (c *Cache) Put(key Digest, version string, tu *frontend.TranslationUnit) error {
	if c == nil || tu == nil || tu.HasErrors() {
		return nil
	}
	unit := tu.Peek()
	if unit == nil {
		return frontend.ErrClosed
	}
	files := unit.Files
	if len(files) == 0 {
		files = []string{unit.Path}
	}
	payload := &Payload{
		Schema:      schemaVersion,
		Version:     version,
		Unit:        *unit,
		Diagnostics: tu.Diagnostics(),
		FilePaths:   files,
		FileHashes:  make([]Digest, len(files)),
	}
	for i, p := range files {
		d, err := HashFile(p)
		if err != nil {
			return err
		}
		payload.FileHashes[i] = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		// после Rename файла уже нет; ошибку удаления игнорируем
		_ = os.Remove(tmp)
	}()
	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(tmp, p)
}

// Get returns the cached unit for key when every recorded file still has
// the recorded hash. Stale or unreadable entries are misses.
func (c *Cache) Get(key Digest, version string) (*frontend.TranslationUnit, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	p := c.pathFor(key)
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload Payload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, nil
	}
	if payload.Schema != schemaVersion || payload.Version != version || len(payload.FilePaths) != len(payload.FileHashes) {
		return nil, false, nil
	}
	for i, path := range payload.FilePaths {
		d, err := HashFile(path)
		if err != nil || d != payload.FileHashes[i] {
			return nil, false, nil
		}
	}
	unit := payload.Unit
	return frontend.NewTranslationUnit(unit.Path, &unit, payload.Diagnostics, nil), true, nil
}

// DropAll removes every entry.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// тривиально: переименуем каталог и удалим
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// HashFile returns the SHA-256 of the file at path.
func HashFile(path string) (Digest, error) {
	var d Digest
	f, err := os.Open(path)
	if err != nil {
		return d, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return d, err
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}
