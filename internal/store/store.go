// Package store implements the vector store from spec.md §4.3: id
// allocation, external↔internal id mapping, encoded/raw payload
// files, and the metadata log. Grounded on the teacher's
// pkg/diskann/disk_graph.go DiskGraph (offset-indexed files,
// append+seek writes, fixed-width binary.Write/Read records) and
// pkg/hnsw/index.go's nodeCounter allocation pattern, extended here
// with a LIFO free-list for id reuse after delete.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Record is the in-memory bookkeeping entry for one internal id: the
// external id it maps to, where its metadata blob lives in meta.log,
// and whether it has been deleted.
type Record struct {
	ExternalID string
	MetaOffset int64
	MetaLen    int32
	Tombstone  bool
}

// Store owns the three on-disk files backing one collection's
// vectors: the encoded payload (always present), the optional raw
// payload, and the append-only metadata log. All public methods are
// safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	dir     string
	dim     int
	keepRaw bool

	encoded *encodedFile // vectors.bin, mmap'd read path
	raw     *encodedFile // raw.bin, nil unless keepRaw
	meta    *metaLog     // meta.log

	nextID   uint32
	freeList []uint32
	extToInt map[string]uint32
	records  map[uint32]*Record
}

// Open creates or reopens a store rooted at dir. stride is the fixed
// byte width of one encoded vector record, as reported by the
// collection's codec.BytesPerVector(dim).
func Open(dir string, stride int, keepRaw bool, rawStride int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	encoded, err := openEncodedFile(filepath.Join(dir, "vectors.bin"), stride)
	if err != nil {
		return nil, fmt.Errorf("store: open vectors.bin: %w", err)
	}

	var raw *encodedFile
	if keepRaw {
		raw, err = openEncodedFile(filepath.Join(dir, "raw.bin"), rawStride)
		if err != nil {
			encoded.Close()
			return nil, fmt.Errorf("store: open raw.bin: %w", err)
		}
	}

	meta, err := openMetaLog(filepath.Join(dir, "meta.log"))
	if err != nil {
		encoded.Close()
		if raw != nil {
			raw.Close()
		}
		return nil, fmt.Errorf("store: open meta.log: %w", err)
	}

	s := &Store{
		dir:      dir,
		keepRaw:  keepRaw,
		encoded:  encoded,
		raw:      raw,
		meta:     meta,
		extToInt: make(map[string]uint32),
		records:  make(map[uint32]*Record),
	}
	return s, nil
}

// Rebuild replaces the store's id-mapping state with entries recovered
// from a snapshot manifest or WAL replay. Callers hold exclusive
// access to the store during recovery, so no locking here.
func (s *Store) Rebuild(nextID uint32, freeList []uint32, records map[uint32]*Record) {
	s.nextID = nextID
	s.freeList = append([]uint32(nil), freeList...)
	s.records = records
	s.extToInt = make(map[string]uint32, len(records))
	for id, rec := range records {
		if !rec.Tombstone {
			s.extToInt[rec.ExternalID] = id
		}
	}
}

// allocate returns a fresh internal id, preferring a reused id from
// the free-list over growing the monotonic counter.
func (s *Store) allocate() uint32 {
	if n := len(s.freeList); n > 0 {
		id := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		return id
	}
	id := s.nextID
	s.nextID++
	return id
}

// Insert allocates a new internal id for ext and writes its encoded
// payload, optional raw payload, and metadata. Returns ErrDuplicateID
// wrapping semantics are the caller's (collection manager's)
// responsibility; Insert itself does not check for an existing ext so
// upsert-vs-insert policy lives one layer up, matching spec.md §6's
// operation split.
func (s *Store) Insert(ext string, encodedVec, rawVec, meta []byte) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocate()
	if err := s.writePayloads(id, encodedVec, rawVec); err != nil {
		return 0, err
	}

	offset, length, err := s.meta.Append(meta)
	if err != nil {
		return 0, fmt.Errorf("store: append metadata: %w", err)
	}

	s.records[id] = &Record{ExternalID: ext, MetaOffset: offset, MetaLen: length}
	s.extToInt[ext] = id
	return id, nil
}

// Upsert overwrites the payload and metadata of the internal id
// already mapped to ext, without reallocating.
func (s *Store) Upsert(ext string, encodedVec, rawVec, meta []byte) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.extToInt[ext]
	if !ok {
		return 0, fmt.Errorf("store: upsert of unknown external id %q", ext)
	}
	if err := s.writePayloads(id, encodedVec, rawVec); err != nil {
		return 0, err
	}

	offset, length, err := s.meta.Append(meta)
	if err != nil {
		return 0, fmt.Errorf("store: append metadata: %w", err)
	}
	rec := s.records[id]
	rec.MetaOffset, rec.MetaLen = offset, length
	return id, nil
}

func (s *Store) writePayloads(id uint32, encodedVec, rawVec []byte) error {
	if err := s.encoded.WriteAt(id, encodedVec); err != nil {
		return fmt.Errorf("store: write encoded payload: %w", err)
	}
	if s.keepRaw {
		if err := s.raw.WriteAt(id, rawVec); err != nil {
			return fmt.Errorf("store: write raw payload: %w", err)
		}
	}
	return nil
}

// Delete tombstones ext's record and returns its internal id to the
// free-list. The encoded/raw bytes are left in place until the id is
// reused from the free-list; snapshots copy the files as they are and
// nothing compacts them. HNSW is responsible for excising the id
// from its neighbor lists before the id is reused.
func (s *Store) Delete(ext string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.extToInt[ext]
	if !ok {
		return 0, fmt.Errorf("store: delete of unknown external id %q", ext)
	}
	s.records[id].Tombstone = true
	delete(s.extToInt, ext)
	s.freeList = append(s.freeList, id)
	return id, nil
}

// Get returns the internal id, encoded payload, raw payload (nil if
// not kept), and metadata bytes for ext.
func (s *Store) Get(ext string) (id uint32, encoded, raw, meta []byte, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.extToInt[ext]
	if !ok {
		return 0, nil, nil, nil, fmt.Errorf("store: %q not found", ext)
	}
	return s.getLocked(id)
}

// GetByID is the id-addressed counterpart of Get, used by the graph
// when it only has an internal id from search results.
func (s *Store) GetByID(id uint32) (ext string, encoded, raw, meta []byte, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || rec.Tombstone {
		return "", nil, nil, nil, fmt.Errorf("store: internal id %d not found", id)
	}
	_, encoded, raw, meta, err = s.getLocked(id)
	return rec.ExternalID, encoded, raw, meta, err
}

func (s *Store) getLocked(id uint32) (uint32, []byte, []byte, []byte, error) {
	rec := s.records[id]
	encoded, err := s.encoded.ReadAt(id)
	if err != nil {
		return 0, nil, nil, nil, fmt.Errorf("store: read encoded payload: %w", err)
	}
	var raw []byte
	if s.keepRaw {
		raw, err = s.raw.ReadAt(id)
		if err != nil {
			return 0, nil, nil, nil, fmt.Errorf("store: read raw payload: %w", err)
		}
	}
	meta, err := s.meta.ReadAt(rec.MetaOffset, rec.MetaLen)
	if err != nil {
		return 0, nil, nil, nil, fmt.Errorf("store: read metadata: %w", err)
	}
	return id, encoded, raw, meta, nil
}

// Encoded implements kernel-facing Reader access for the graph: it
// returns only the encoded payload, skipping the metadata/raw lookups
// that Get and GetByID perform.
func (s *Store) Encoded(id uint32) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encoded.ReadAt(id)
}

// Len reports the number of live (non-tombstoned) records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if !rec.Tombstone {
			n++
		}
	}
	return n
}

// IterFunc is called once per live record during Iter, in internal-id
// order. Returning a non-nil error stops iteration early.
type IterFunc func(id uint32, ext string, encoded, raw, meta []byte) error

// Iter walks every live record as of the moment Iter was called.
// Per spec.md §4.3, ids created after iteration begins are silently
// skipped rather than racing with the snapshot in progress; ids are
// never reassigned out from under an in-flight Iter because Delete
// only appends to the free-list, it never shrinks nextID.
func (s *Store) Iter(fn IterFunc) error {
	s.mu.RLock()
	maxID := s.nextID
	s.mu.RUnlock()

	for id := uint32(0); id < maxID; id++ {
		s.mu.RLock()
		rec, ok := s.records[id]
		if !ok || rec.Tombstone {
			s.mu.RUnlock()
			continue
		}
		_, encoded, raw, meta, err := s.getLocked(id)
		ext := rec.ExternalID
		s.mu.RUnlock()
		if err != nil {
			return err
		}
		if err := fn(id, ext, encoded, raw, meta); err != nil {
			return err
		}
	}
	return nil
}

// Manifest is the subset of store state a snapshot needs to persist
// and a recovery needs to restore, separate from the encoded/raw/meta
// file bytes themselves.
type Manifest struct {
	NextID   uint32             `json:"next_id"`
	FreeList []uint32           `json:"free_list"`
	Records  map[uint32]*Record `json:"records"`
}

// ManifestSnapshot returns a point-in-time copy of the id-mapping
// state for serialization into a snapshot manifest.
func (s *Store) ManifestSnapshot() Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make(map[uint32]*Record, len(s.records))
	for id, rec := range s.records {
		cp := *rec
		records[id] = &cp
	}
	return Manifest{
		NextID:   s.nextID,
		FreeList: append([]uint32(nil), s.freeList...),
		Records:  records,
	}
}

// MarshalManifest is a convenience wrapper for writers that persist
// the manifest as JSON alongside the other snapshot files.
func (s *Store) MarshalManifest() ([]byte, error) {
	return json.Marshal(s.ManifestSnapshot())
}

// Close flushes and closes all three underlying files.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if err := s.encoded.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.raw != nil {
		if err := s.raw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.meta.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
