package store

import (
	"context"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"
)

const pebbleKeyPrefix = "cursor/"

// cursorRecord is the on-disk envelope for a cursor value.
type cursorRecord struct {
	Value     string `msgpack:"v"`
	UpdatedAt int64  `msgpack:"t"` // unix millis of the last write
}

// Pebble is a durable cursor store. Writes are synced so an acknowledged
// cursor survives process crashes; reads go through a small LRU of hot
// records since consume loops re-read the same few cursors continuously.
type Pebble struct {
	db    *pebble.DB
	cache *lru.Cache[string, cursorRecord]
	owned bool
}

// OpenPebble opens (or creates) a Pebble database at path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	p, err := NewPebble(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	p.owned = true
	return p, nil
}

// NewPebble wraps an existing Pebble handle. The caller keeps ownership
// of the handle's lifecycle.
func NewPebble(db *pebble.DB) (*Pebble, error) {
	cache, err := lru.New[string, cursorRecord](256)
	if err != nil {
		return nil, err
	}
	return &Pebble{db: db, cache: cache}, nil
}

func pebbleKey(name string) []byte {
	return []byte(pebbleKeyPrefix + name)
}

func (p *Pebble) Get(_ context.Context, name string) (string, bool, error) {
	if rec, ok := p.cache.Get(name); ok {
		return rec.Value, true, nil
	}

	raw, closer, err := p.db.Get(pebbleKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()

	var rec cursorRecord
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return "", false, err
	}
	p.cache.Add(name, rec)
	return rec.Value, true, nil
}

func (p *Pebble) Set(_ context.Context, name, value string) error {
	rec := cursorRecord{Value: value, UpdatedAt: time.Now().UnixMilli()}
	raw, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	if err := p.db.Set(pebbleKey(name), raw, pebble.Sync); err != nil {
		return err
	}
	p.cache.Add(name, rec)
	return nil
}

func (p *Pebble) Delete(_ context.Context, name string) error {
	p.cache.Remove(name)
	return p.db.Delete(pebbleKey(name), pebble.Sync)
}

// Close closes the underlying database when this store opened it.
func (p *Pebble) Close() error {
	if !p.owned {
		return nil
	}
	return p.db.Close()
}
