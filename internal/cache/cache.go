// Package cache implements the compiled-query cache (spec §B): an
// optional layer in front of a compile call, keyed by a deterministic
// hash of the UserQuery, so a long-running process skips recompiling
// identical queries. Grounded on the teacher's planner.PlanCache
// (datalog/planner/cache.go) for the key-computation and cache-API
// shape, backed here by `ristretto` for the in-process tier and
// optionally `badger` for on-disk persistence across restarts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto"

	"github.com/screenql/compiler/internal/model"
)

// Entry is one cached compile result (spec §6 "Output from core").
type Entry struct {
	SQL        string                 `json:"sql"`
	Parameters map[string]interface{} `json:"parameters"`
	Diagram    string                 `json:"diagram"`
}

// Key computes a deterministic cache key for q: a sha256 digest of q's
// JSON encoding (produced by the model's custom MarshalJSON methods),
// prefixed with "QUERY:". Every encoded field of q takes part in the key,
// including pass-through metadata the compiler never reads (spec §B).
func Key(q *model.UserQuery) (string, error) {
	canonical, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize query: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "QUERY:%s", canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CompiledQueryCache is a two-tier cache: an in-process ristretto.Cache
// consulted first, falling back to an optional on-disk badger.DB that
// survives process restarts. Either tier may be nil; a zero-value
// CompiledQueryCache (both nil) is valid and simply never hits, so
// callers can wire a cache unconditionally without a feature-flag
// branch at every call site (spec §C.1).
type CompiledQueryCache struct {
	memory *ristretto.Cache
	disk   *badger.DB
}

// New constructs a CompiledQueryCache with an in-process ristretto tier
// sized for approximately maxEntries compiled queries. Pass a non-empty
// diskPath to additionally open an on-disk badger store at that path;
// an empty diskPath skips the disk tier.
func New(maxEntries int64, diskPath string) (*CompiledQueryCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	memory, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: create in-process cache: %w", err)
	}

	c := &CompiledQueryCache{memory: memory}
	if diskPath == "" {
		return c, nil
	}

	db, err := badger.Open(badger.DefaultOptions(diskPath).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("cache: open disk cache at %s: %w", diskPath, err)
	}
	c.disk = db
	return c, nil
}

// Close releases the disk tier, if one was opened. Safe to call on a
// disk-less cache.
func (c *CompiledQueryCache) Close() error {
	if c == nil || c.disk == nil {
		return nil
	}
	return c.disk.Close()
}

// Get returns the cached Entry for key, checking the in-process tier
// first and, on a miss, the disk tier (populating the in-process tier on
// a disk hit so subsequent lookups avoid the disk round-trip).
func (c *CompiledQueryCache) Get(key string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	if c.memory != nil {
		if v, ok := c.memory.Get(key); ok {
			if e, ok := v.(Entry); ok {
				return e, true
			}
		}
	}
	if c.disk == nil {
		return Entry{}, false
	}

	var entry Entry
	found := false
	err := c.disk.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if jerr := json.Unmarshal(val, &entry); jerr != nil {
				return jerr
			}
			found = true
			return nil
		})
	})
	if err != nil || !found {
		return Entry{}, false
	}
	if c.memory != nil {
		c.memory.Set(key, entry, 1)
	}
	return entry, true
}

// Set stores entry under key in both tiers (whichever are configured).
func (c *CompiledQueryCache) Set(key string, entry Entry) {
	if c == nil {
		return
	}
	if c.memory != nil {
		c.memory.Set(key, entry, 1)
	}
	if c.disk == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = c.disk.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}
