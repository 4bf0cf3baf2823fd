package ddns

import (
	"encoding/json"
	"io/fs"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Keys under which the resolved identifiers are cached.
const (
	KeyZoneID   = "zoneId"
	KeyRecordID = "recordId"
)

// Cache is a flat JSON document persisted in a single file.
//
// The file must exist before LoadCache is called; Cache never creates it implicitly.
// Every write merges into the in-memory document and then replaces the file atomically:
// the new document is written to a sibling temporary file and renamed over the original,
// so a crash leaves either the old or the new document on disk.
//
// Concurrent runs against the same file are not coordinated.
type Cache struct {
	fs     afero.Fs
	path   string
	logger *zerolog.Logger

	mu  sync.RWMutex
	doc map[string]any

	writeMu sync.Mutex // serializes persists so the last merge wins on disk
	pending errgroup.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithFs makes the cache read and write through fsys instead of the OS filesystem.
func WithFs(fsys afero.Fs) CacheOption {
	return func(c *Cache) {
		if fsys != nil {
			c.fs = fsys
		}
	}
}

// LoadCache reads the document at path.
// A missing file is a *ConfigError naming path.
func LoadCache(path string, logger *zerolog.Logger, options ...CacheOption) (*Cache, error) {
	if logger == nil {
		return nil, &ValidationError{Msg: "ddns.LoadCache: logger is required"}
	}
	c := &Cache{
		fs:     afero.NewOsFs(),
		path:   path,
		logger: logger,
	}
	for _, opt := range options {
		opt(c)
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) load() error {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ConfigError{Msg: "Config file not found", Path: c.path}
		}
		return &ConfigError{Msg: "error reading config file", Path: c.path, Err: err}
	}
	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ConfigError{Msg: "config file is not a JSON object", Path: c.path, Err: err}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	c.doc = doc
	c.logger.Debug().Str("path", c.path).Int("keys", len(doc)).Msg("loaded config file")
	return nil
}

// Path returns the location of the backing file.
func (c *Cache) Path() string { return c.path }

// Get returns the value stored under key in memory.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.doc[key]
	return v, ok
}

// Set stores value under key and persists the document in the background.
// The value is visible to Get as soon as Set returns; call Wait for durability.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.doc[key] = value
	c.mu.Unlock()

	c.pending.Go(c.persist)
}

// Wait blocks until every persist started by Set has finished
// and returns the first error any of them hit.
func (c *Cache) Wait() error {
	return c.pending.Wait()
}

// SaveConfig merges partial into the document (keys in partial win) and persists it.
//
// The in-memory document keeps the merge even when persisting fails,
// so memory and disk may disagree after an error.
func (c *Cache) SaveConfig(partial map[string]any) error {
	c.mu.Lock()
	for k, v := range partial {
		c.doc[k] = v
	}
	c.mu.Unlock()
	return c.persist()
}

// Snapshot returns a shallow copy of the in-memory document.
func (c *Cache) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.doc))
	for k, v := range c.doc {
		out[k] = v
	}
	return out
}

func (c *Cache) tempPath() string { return c.path + ".tmp" }

func (c *Cache) persist() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	data, err := json.MarshalIndent(c.doc, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		c.logger.Error().Err(err).Msg("error encoding config")
		return errors.Wrap(err, "error encoding config")
	}

	tmp := c.tempPath()
	if err := c.writeFile(tmp, data); err != nil {
		c.logger.Error().Err(err).Str("path", tmp).Msg("error writing temporary config file")
		_ = c.fs.Remove(tmp)
		return errors.Wrapf(err, "error writing %s", tmp)
	}
	if err := c.fs.Rename(tmp, c.path); err != nil {
		c.logger.Error().Err(err).Str("path", c.path).Msg("error replacing config file")
		_ = c.fs.Remove(tmp)
		return errors.Wrapf(err, "error replacing %s", c.path)
	}
	c.logger.Debug().Str("path", c.path).Msg("config saved")
	return nil
}

func (c *Cache) writeFile(name string, data []byte) error {
	f, err := c.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Provision creates an empty document at path.
// It fails if a file already exists there.
func Provision(fsys afero.Fs, path string) error {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &ConfigError{Msg: "config file already exists", Path: path}
		}
		return &ConfigError{Msg: "error creating config file", Path: path, Err: err}
	}
	if _, err := f.Write([]byte("{}")); err != nil {
		f.Close()
		return &ConfigError{Msg: "error writing config file", Path: path, Err: err}
	}
	return f.Close()
}
