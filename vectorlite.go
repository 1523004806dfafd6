// Package vectorlite is an embeddable approximate-nearest-neighbor
// vector database: named collections, each an independent HNSW index
// backed by a write-ahead log and periodic snapshots. The package
// exposes the library contract consumed by the REST/CLI shells in
// this module; see collection.Manager and collection.Collection for
// the implementation this type composes. Grounded on the facade shape
// of pkg/tenant/manager.go: a single exported entry type wrapping a
// map-of-namespaces, generalized here to collections.
package vectorlite

import (
	"path/filepath"
	"time"

	"github.com/vectorlite/vectorlite/collection"
	"github.com/vectorlite/vectorlite/internal/codec"
	"github.com/vectorlite/vectorlite/internal/kernel"
	"github.com/vectorlite/vectorlite/pkg/search"
)

// Metric re-exports internal/kernel's distance metric enum for callers
// configuring a new collection.
type Metric = kernel.Metric

const (
	Cosine = kernel.Cosine
	L2     = kernel.L2
	Dot    = kernel.Dot
)

// CodecKind re-exports internal/codec's quantization variant enum.
type CodecKind = codec.Kind

const (
	CodecNone   = codec.None
	CodecSQ8    = codec.SQ8
	CodecBinary = codec.Binary
	CodecPQ     = codec.PQ
)

// Config is a collection's creation-time configuration.
type Config = collection.Config

// Record is a stored (vector, metadata) pair returned by Get.
type Record = collection.Record

// SearchOptions carries the per-call overrides spec.md §6 names:
// ef_search override, rerank_factor, and a post-candidate filter.
type SearchOptions = collection.SearchOptions

// Filter is the post-candidate metadata predicate accepted by Search.
type Filter = collection.Filter

// SearchHit is one ranked result from Search.
type SearchHit = collection.SearchHit

// Stats reports the per-collection figures the stats() operation
// surfaces: count, dims, metric, codec, memory_bytes, disk_bytes.
type Stats = collection.Stats

// DefaultConfig returns spec.md's stated parameter defaults for a
// collection of the given dimension and metric.
func DefaultConfig(dim int, metric Metric) Config {
	return collection.DefaultConfig(dim, metric)
}

// DB is the top-level handle returned by Open. All methods are safe
// for concurrent use.
type DB struct {
	manager *collection.Manager
	cache   *search.QueryCache
}

// Open opens (creating if necessary) the database rooted at dir,
// recovering every existing collection from its latest snapshot plus
// WAL suffix. defaultConfig is unused by Open itself (each collection
// carries its own persisted config) but is accepted to match spec.md
// §6's `open(dir, default_config)` signature, reserved for a future
// auto-create-on-first-insert convenience.
func Open(dir string, defaultConfig Config) (*DB, error) {
	_ = defaultConfig
	mgr, err := collection.NewManager(filepath.Join(dir, "collections"))
	if err != nil {
		return nil, wrapf("open", err)
	}
	return &DB{
		manager: mgr,
		cache:   search.NewQueryCache(1024, 30*time.Second),
	}, nil
}

// CreateCollection registers a new, empty collection under name.
func (db *DB) CreateCollection(name string, cfg Config) error {
	_, err := db.manager.CreateCollection(name, cfg)
	if err != nil {
		return wrapf("create_collection", err)
	}
	return nil
}

// DropCollection flushes, closes, and deletes name's entire on-disk state.
func (db *DB) DropCollection(name string) error {
	if err := db.manager.DropCollection(name); err != nil {
		return wrapf("drop_collection", err)
	}
	db.cache.Clear()
	return nil
}

// ListCollections returns every registered collection's name.
func (db *DB) ListCollections() []string {
	return db.manager.List()
}

// Insert adds a new record to coll, failing with ErrDuplicateID if id
// already exists.
func (db *DB) Insert(coll, id string, vec []float32, meta []byte) error {
	c, err := db.manager.Get(coll)
	if err != nil {
		return wrapf("insert", err)
	}
	if err := c.Insert(id, vec, meta); err != nil {
		return wrapf("insert", err)
	}
	db.cache.Clear()
	return nil
}

// Upsert inserts or overwrites id's vector and metadata in coll.
func (db *DB) Upsert(coll, id string, vec []float32, meta []byte) error {
	c, err := db.manager.Get(coll)
	if err != nil {
		return wrapf("upsert", err)
	}
	if err := c.Upsert(id, vec, meta); err != nil {
		return wrapf("upsert", err)
	}
	db.cache.Clear()
	return nil
}

// Delete removes id from coll, returning false if it was never present.
func (db *DB) Delete(coll, id string) (bool, error) {
	c, err := db.manager.Get(coll)
	if err != nil {
		return false, wrapf("delete", err)
	}
	ok, err := c.Delete(id)
	if err != nil {
		return false, wrapf("delete", err)
	}
	if ok {
		db.cache.Clear()
	}
	return ok, nil
}

// Get returns id's stored record from coll.
func (db *DB) Get(coll, id string) (Record, error) {
	c, err := db.manager.Get(coll)
	if err != nil {
		return Record{}, wrapf("get", err)
	}
	rec, err := c.Get(id)
	if err != nil {
		return Record{}, wrapf("get", err)
	}
	return rec, nil
}

// Search finds the k nearest neighbors of query in coll. Queries with
// no filter and no rerank_factor override are served from an LRU
// result cache keyed on the collection name and the (query, k,
// ef_search) tuple; any mutation clears it, so
// a hit is always consistent with the collection's current state at
// the time of the hit.
func (db *DB) Search(coll string, query []float32, k int, opts SearchOptions) ([]SearchHit, error) {
	c, err := db.manager.Get(coll)
	if err != nil {
		return nil, wrapf("search", err)
	}

	cacheable := opts.Filter == nil && opts.RerankFactor <= 0
	var key search.CacheKey
	if cacheable {
		key = search.GenerateVectorQueryKey(coll, query, k, opts.EfSearch)
		if cached, found := db.cache.Get(key); found {
			return cached.([]SearchHit), nil
		}
	}

	hits, err := c.Search(query, k, opts)
	if err != nil {
		return nil, wrapf("search", err)
	}
	if cacheable {
		db.cache.Put(key, hits)
	}
	return hits, nil
}

// Stats reports {count, dims, metric, codec, memory_bytes, disk_bytes}
// for every collection.
func (db *DB) Stats() map[string]Stats {
	return db.manager.Stats()
}

// Flush forces an immediate snapshot of every collection.
func (db *DB) Flush() error {
	for _, name := range db.manager.List() {
		c, err := db.manager.Get(name)
		if err != nil {
			continue
		}
		if err := c.Flush(); err != nil {
			return wrapf("flush", err)
		}
	}
	return nil
}

// Close flushes a final snapshot for every collection and releases
// every open file handle / mmap region.
func (db *DB) Close() error {
	if err := db.manager.Close(); err != nil {
		return wrapf("close", err)
	}
	return nil
}
