package collection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vectorlite/vectorlite/internal/codec"
	"github.com/vectorlite/vectorlite/internal/graph"
	"github.com/vectorlite/vectorlite/internal/kernel"
	"github.com/vectorlite/vectorlite/internal/snapshot"
	"github.com/vectorlite/vectorlite/internal/store"
	"github.com/vectorlite/vectorlite/internal/verrors"
	"github.com/vectorlite/vectorlite/internal/wal"
	"github.com/vectorlite/vectorlite/pkg/search"
)

// Filter is the post-candidate metadata predicate a Search call may
// supply, matching pkg/search's existing Filter interface but applied
// against a record's decoded metadata map rather than a caller-built one.
type Filter = search.Filter

const (
	manifestFileName = "manifest.json"
	walFileName      = "wal.log"
)

// bufferedRecord is one insert/upsert buffered while a trainable codec
// (PerDimension SQ8, PQ) is still waiting on its fit population, per
// spec.md §9's "quantization fit step" design note.
type bufferedRecord struct {
	ext  string
	vec  []float32
	meta []byte
	op   wal.Op // OpInsert or OpUpsert
}

// Collection is one named, independently-configured instance of
// store+graph+WAL+snapshot, per spec.md §4.6. Every mutating method
// serializes under mu, matching spec.md §5's "at most one in-flight
// mutating operation per collection".
type Collection struct {
	Name string

	dir string
	cfg Config

	codec  codec.Codec
	store  *store.Store
	index  *graph.Index
	source *vectorSource
	log    *wal.Writer

	mu               sync.Mutex
	poisoned         bool
	opsSinceSnapshot int64
	lastSnapshotLSN  uint64
	lastSnapshotDir  string
	trainingBuffer   []bufferedRecord
}

// Create initializes a brand new collection directory. It fails with
// ErrAlreadyExists if a manifest already exists there.
func Create(dir, name string, cfg Config) (*Collection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, manifestFileName)); err == nil {
		return nil, fmt.Errorf("collection: %s: %w", name, verrors.ErrAlreadyExists)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("collection: create dir: %w", err)
	}

	c, err := newCollection(dir, name, cfg)
	if err != nil {
		return nil, err
	}
	if err := writeManifest(dir, cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Open reopens an existing collection directory, recovering from its
// latest complete snapshot (if any) and replaying the WAL suffix after
// it, per spec.md §4.5's recovery procedure.
func Open(dir, name string) (*Collection, error) {
	cfg, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	c, err := newCollection(dir, name, cfg)
	if err != nil {
		return nil, err
	}
	if err := c.recover(); err != nil {
		return nil, err
	}
	return c, nil
}

func newCollection(dir, name string, cfg Config) (*Collection, error) {
	cd, err := codec.New(cfg.CodecKind, cfg.Metric, cfg.Dim, cfg.SQ8Mode)
	if err != nil {
		return nil, fmt.Errorf("collection: %w", err)
	}

	stride := cd.BytesPerVector(cfg.Dim)
	rawStride := cfg.Dim * 4
	st, err := store.Open(dir, stride, cfg.KeepRaw, rawStride)
	if err != nil {
		return nil, fmt.Errorf("collection: %w", err)
	}

	src, err := newVectorSource(st, cd)
	if err != nil {
		st.Close()
		return nil, err
	}
	idx, err := graph.New(cfg.HNSW, src)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("collection: %w", err)
	}

	walPath := filepath.Join(dir, walFileName)
	if err := wal.Truncate(walPath); err != nil {
		st.Close()
		return nil, fmt.Errorf("collection: %w", err)
	}
	w, err := wal.Open(walPath, wal.DefaultConfig())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("collection: %w", err)
	}

	return &Collection{
		Name:   name,
		dir:    dir,
		cfg:    cfg,
		codec:  cd,
		store:  st,
		index:  idx,
		source: src,
		log:    w,
	}, nil
}

func writeManifest(dir string, cfg Config) error {
	b, err := json.MarshalIndent(toManifestJSON(cfg), "", "  ")
	if err != nil {
		return fmt.Errorf("collection: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFileName), b, 0o644); err != nil {
		return fmt.Errorf("collection: write manifest: %w", err)
	}
	return nil
}

func readManifest(dir string) (Config, error) {
	b, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return Config{}, fmt.Errorf("collection: read manifest: %w", err)
	}
	var m manifestJSON
	if err := json.Unmarshal(b, &m); err != nil {
		return Config{}, fmt.Errorf("collection: unmarshal manifest: %w", verrors.ErrCorrupt)
	}
	return fromManifestJSON(m)
}

// recover loads the latest complete snapshot (if any) into the store
// and graph, then replays every WAL record with a greater LSN, exactly
// per spec.md §4.5. A collection with no snapshot yet replays its
// entire WAL from scratch against the freshly-opened (empty) store.
func (c *Collection) recover() error {
	snapDir, found, err := snapshot.Locate(c.dir)
	if err != nil {
		return fmt.Errorf("collection: locate snapshot: %w", err)
	}

	var snapshotLSN uint64
	if found {
		loaded, err := snapshot.Load(snapDir)
		if err != nil {
			return fmt.Errorf("collection: load snapshot: %w", verrors.ErrCorrupt)
		}
		if err := c.restoreFromSnapshot(loaded); err != nil {
			return err
		}
		snapshotLSN = loaded.Manifest.LSN
		c.lastSnapshotLSN = snapshotLSN
		c.lastSnapshotDir = snapDir
	}

	records, err := wal.Replay(filepath.Join(c.dir, walFileName))
	if err != nil {
		return fmt.Errorf("collection: replay wal: %w", err)
	}
	for _, r := range records {
		if found && r.LSN <= snapshotLSN {
			continue // already reflected in the snapshot
		}
		if err := c.applyRecord(r); err != nil {
			return fmt.Errorf("collection: apply wal record lsn=%d: %w", r.LSN, err)
		}
	}

	// c.log's nextLSN was seeded from whatever records this WAL file
	// still physically contains, which on a restart with little or no
	// post-snapshot tail undercounts the snapshot's own LSN. Without
	// this, the first post-recovery write could be numbered at or below
	// snapshotLSN and would look pre-reflected (and so get skipped) on
	// the next recovery, even though it was never actually applied.
	if found {
		c.log.BumpNextLSN(snapshotLSN + 1)
	}
	return nil
}

// restoreFromSnapshot copies the snapshot's vectors/raw/meta files over
// the freshly-opened store's (empty) files, then rebuilds the store's
// id-mapping state, the codec's trained codebook (if any), and the
// graph topology from the snapshot's recorded bytes.
func (c *Collection) restoreFromSnapshot(loaded snapshot.Loaded) error {
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("collection: close store before restore: %w", err)
	}
	if err := copyOver(loaded.VectorsPath, filepath.Join(c.dir, "vectors.bin")); err != nil {
		return err
	}
	if loaded.RawPath != "" {
		if err := copyOver(loaded.RawPath, filepath.Join(c.dir, "raw.bin")); err != nil {
			return err
		}
	}
	if err := copyOver(loaded.MetaPath, filepath.Join(c.dir, "meta.log")); err != nil {
		return err
	}

	stride := c.codec.BytesPerVector(c.cfg.Dim)
	st, err := store.Open(c.dir, stride, c.cfg.KeepRaw, c.cfg.Dim*4)
	if err != nil {
		return fmt.Errorf("collection: reopen store after restore: %w", err)
	}
	c.store = st
	src, err := newVectorSource(st, c.codec)
	if err != nil {
		return err
	}
	c.source = src

	var persisted persistedState
	if err := json.Unmarshal(loaded.Manifest.StoreManifest, &persisted); err != nil {
		return fmt.Errorf("collection: unmarshal persisted state: %w", verrors.ErrCorrupt)
	}
	c.store.Rebuild(persisted.Store.NextID, persisted.Store.FreeList, persisted.Store.Records)
	if err := applyCodecState(c.codec, persisted.Codec); err != nil {
		return err
	}

	idx, err := graph.Deserialize(bytes.NewReader(loaded.IndexBytes), c.cfg.HNSW, c.source)
	if err != nil {
		return fmt.Errorf("collection: deserialize graph: %w", err)
	}
	c.index = idx
	return nil
}

func copyOver(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("collection: read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("collection: write %s: %w", dst, err)
	}
	return nil
}

// persistedState bundles the store's id-mapping manifest with any
// trained codec state into the single opaque blob a snapshot's
// manifest.json carries, per spec.md §9's codebook-persistence note.
type persistedState struct {
	Store store.Manifest  `json:"store"`
	Codec json.RawMessage `json:"codec,omitempty"`
}

func (c *Collection) applyRecord(r wal.Record) error {
	switch r.Op {
	case wal.OpInsert, wal.OpUpsert:
		m, err := wal.DecodeVectorMutation(r.Payload)
		if err != nil {
			return err
		}
		return c.applyMutation(m, r.Op)
	case wal.OpDelete:
		m, err := wal.DecodeDeleteMutation(r.Payload)
		if err != nil {
			return err
		}
		id, err := c.store.Delete(m.ExternalID)
		if err != nil {
			return nil // already deleted or never existed post-snapshot; idempotent replay
		}
		return c.index.Delete(id)
	case wal.OpCreateCollection, wal.OpDropCollection, wal.OpCheckpoint:
		return nil // informational markers; config/state already known from manifest.json
	default:
		return fmt.Errorf("collection: unknown wal op %v", r.Op)
	}
}

func (c *Collection) applyMutation(m wal.VectorMutation, op wal.Op) error {
	vec := append([]float32(nil), m.Vector...)
	if c.cfg.Metric == kernel.Cosine {
		normalizeInPlace(vec)
	}

	if trainable, ok := c.codec.(codec.Trainable); ok && !c.codec.Trained() {
		c.trainingBuffer = append(c.trainingBuffer, bufferedRecord{ext: m.ExternalID, vec: vec, meta: m.Metadata, op: op})
		if len(c.trainingBuffer) >= c.cfg.TrainingSetSize {
			return c.finishTraining(trainable)
		}
		return nil
	}
	return c.commitVector(m.ExternalID, vec, m.Metadata, op)
}

func (c *Collection) finishTraining(trainable codec.Trainable) error {
	samples := make([][]float32, len(c.trainingBuffer))
	for i, b := range c.trainingBuffer {
		samples[i] = b.vec
	}
	if err := trainable.Train(samples); err != nil {
		return fmt.Errorf("collection: train codec: %w", err)
	}
	buffered := c.trainingBuffer
	c.trainingBuffer = nil
	for _, b := range buffered {
		if err := c.commitVector(b.ext, b.vec, b.meta, b.op); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection) commitVector(ext string, vec []float32, meta []byte, op wal.Op) error {
	encoded, err := c.codec.Encode(vec)
	if err != nil {
		return fmt.Errorf("collection: encode: %w", err)
	}
	var raw []byte
	if c.cfg.KeepRaw {
		raw = f32ToBytes(vec)
	}

	if op == wal.OpUpsert {
		_, _, _, _, getErr := c.store.Get(ext)
		if getErr != nil {
			id, err := c.store.Insert(ext, encoded, raw, meta)
			if err != nil {
				return fmt.Errorf("collection: store insert (upsert-new): %w", err)
			}
			return c.index.Insert(id, vec)
		}
		id, err := c.store.Upsert(ext, encoded, raw, meta)
		if err != nil {
			return fmt.Errorf("collection: store upsert: %w", err)
		}
		if c.index.Contains(id) {
			if err := c.index.Delete(id); err != nil {
				return err
			}
		}
		return c.index.Insert(id, vec)
	}
	id, err := c.store.Insert(ext, encoded, raw, meta)
	if err != nil {
		return fmt.Errorf("collection: store insert: %w", err)
	}
	return c.index.Insert(id, vec)
}

// normalizeInPlace rescales vec to unit L2 norm, matching the
// cosine-metric invariant that every stored vector has norm 1±1e-5.
func normalizeInPlace(vec []float32) {
	var sumSq float32
	for _, v := range vec {
		sumSq += v * v
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(float64(sumSq)))
	for i := range vec {
		vec[i] /= norm
	}
}

func f32ToBytes(vec []float32) []byte {
	out := make([]byte, len(vec)*4)
	for i, v := range vec {
		bits := math.Float32bits(v)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

// validateDim reports ErrDimMismatch if vec doesn't match the
// collection's configured dimension.
func (c *Collection) validateDim(vec []float32) error {
	if len(vec) != c.cfg.Dim {
		return fmt.Errorf("collection %s: got dim %d, want %d: %w", c.Name, len(vec), c.cfg.Dim, verrors.ErrDimMismatch)
	}
	return nil
}

// Insert adds a new record. The WAL record is appended (and fsynced)
// before the in-memory store/graph are mutated — an operation is
// acknowledged to the caller only once both have happened, per
// spec.md §4.5's commit rule.
func (c *Collection) Insert(ext string, vec []float32, meta []byte) error {
	return c.mutate(ext, vec, meta, wal.OpInsert, true)
}

// Upsert inserts or overwrites ext's vector and metadata.
func (c *Collection) Upsert(ext string, vec []float32, meta []byte) error {
	return c.mutate(ext, vec, meta, wal.OpUpsert, false)
}

func (c *Collection) mutate(ext string, vec []float32, meta []byte, op wal.Op, rejectDuplicate bool) error {
	if err := c.validateDim(vec); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned {
		return fmt.Errorf("collection %s: %w", c.Name, verrors.ErrPoisoned)
	}
	if rejectDuplicate {
		if _, _, _, _, err := c.store.Get(ext); err == nil {
			return fmt.Errorf("collection %s: id %q: %w", c.Name, ext, verrors.ErrDuplicateID)
		}
		for _, b := range c.trainingBuffer {
			if b.ext == ext {
				return fmt.Errorf("collection %s: id %q: %w", c.Name, ext, verrors.ErrDuplicateID)
			}
		}
	}

	payload := wal.EncodeVectorMutation(wal.VectorMutation{Collection: c.Name, ExternalID: ext, Vector: vec, Metadata: meta})
	if _, err := c.log.Append(op, payload); err != nil {
		return fmt.Errorf("collection %s: %w", c.Name, verrors.ErrIO)
	}

	if err := c.applyMutation(wal.VectorMutation{ExternalID: ext, Vector: vec, Metadata: meta}, op); err != nil {
		c.poisoned = true
		return fmt.Errorf("collection %s: %w", c.Name, verrors.ErrIO)
	}
	c.opsSinceSnapshot++
	return nil
}

// Delete removes ext's record. Returns (false, nil) if ext was never
// present, matching spec.md §6's `delete(coll, id) → bool | NotFound`.
func (c *Collection) Delete(ext string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned {
		return false, fmt.Errorf("collection %s: %w", c.Name, verrors.ErrPoisoned)
	}

	if _, _, _, _, err := c.store.Get(ext); err != nil {
		return false, nil
	}

	payload := wal.EncodeDeleteMutation(wal.DeleteMutation{Collection: c.Name, ExternalID: ext})
	if _, err := c.log.Append(wal.OpDelete, payload); err != nil {
		return false, fmt.Errorf("collection %s: %w", c.Name, verrors.ErrIO)
	}

	id, err := c.store.Delete(ext)
	if err != nil {
		c.poisoned = true
		return false, fmt.Errorf("collection %s: %w", c.Name, verrors.ErrIO)
	}
	if err := c.index.Delete(id); err != nil {
		c.poisoned = true
		return false, fmt.Errorf("collection %s: %w", c.Name, verrors.ErrIO)
	}
	c.opsSinceSnapshot++
	return true, nil
}

// Record is a single (external id, vector, metadata) triple returned by Get.
type Record struct {
	ExternalID string
	Vector     []float32
	Metadata   []byte
}

// Get returns ext's vector (dequantized if necessary) and metadata.
func (c *Collection) Get(ext string) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned {
		return Record{}, fmt.Errorf("collection %s: %w", c.Name, verrors.ErrPoisoned)
	}

	_, encoded, raw, meta, err := c.store.Get(ext)
	if err != nil {
		return Record{}, fmt.Errorf("collection %s: %q: %w", c.Name, ext, verrors.ErrNotFound)
	}
	vec, err := c.decodeVector(encoded, raw)
	if err != nil {
		return Record{}, err
	}
	return Record{ExternalID: ext, Vector: vec, Metadata: meta}, nil
}

func (c *Collection) decodeVector(encoded, raw []byte) ([]float32, error) {
	if c.cfg.KeepRaw && raw != nil {
		return bytesToF32(raw, c.cfg.Dim)
	}
	// No raw vector kept: the None codec stores the f32 bytes as they
	// are, so decode those exactly; otherwise refuse — lossy
	// codecs without kept raw cannot reproduce the original vector.
	if c.cfg.CodecKind == codec.None {
		return bytesToF32(encoded, c.cfg.Dim)
	}
	return nil, fmt.Errorf("collection %s: original vector not retained (keep_raw=false)", c.Name)
}

func bytesToF32(b []byte, dim int) ([]float32, error) {
	if len(b) != dim*4 {
		return nil, fmt.Errorf("collection: encoded length %d does not match dim %d", len(b), dim)
	}
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// SearchOptions carries the per-call overrides from spec.md §6.
type SearchOptions struct {
	EfSearch     int
	RerankFactor int
	Filter       Filter
}

// SearchHit is one ranked result.
type SearchHit struct {
	ExternalID string
	Score      float32
	Metadata   []byte
}

// Search finds the k nearest neighbors of query. When the codec is
// lossy and raw vectors are kept, the ANN candidate set is
// over-sampled by RerankFactor (default 2, per spec.md §4.2) and
// re-scored exactly before trimming to k.
func (c *Collection) Search(query []float32, k int, opts SearchOptions) ([]SearchHit, error) {
	if err := c.validateDim(query); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.poisoned {
		c.mu.Unlock()
		return nil, fmt.Errorf("collection %s: %w", c.Name, verrors.ErrPoisoned)
	}
	idx := c.index
	st := c.store
	cd := c.codec
	keepRaw := c.cfg.KeepRaw
	metric := c.cfg.Metric
	c.mu.Unlock()

	q := append([]float32(nil), query...)
	if metric == kernel.Cosine {
		normalizeInPlace(q)
	}

	efSearch := opts.EfSearch
	if efSearch <= 0 {
		efSearch = c.cfg.HNSW.EfSearch
	}
	rerank := opts.RerankFactor
	if rerank <= 0 {
		rerank = 2
	}

	candidateK := k
	if cd.Kind() != codec.None && keepRaw {
		candidateK = k * rerank
	}
	if opts.Filter != nil {
		candidateK *= 4 // oversample further so post-candidate filtering still has k to return
	}
	if efSearch < candidateK {
		efSearch = candidateK
	}

	results, err := idx.Search(q, candidateK, efSearch)
	if err != nil {
		return nil, fmt.Errorf("collection %s: search: %w", c.Name, err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		ext, _, raw, meta, err := st.GetByID(r.ID)
		if err != nil {
			continue // tombstoned between candidate generation and rescoring
		}
		score := r.Distance
		if cd.Kind() != codec.None && keepRaw {
			if vec, err := bytesToF32(raw, c.cfg.Dim); err == nil {
				score = kernel.Of(metric)(q, vec)
			}
		}
		if opts.Filter != nil {
			var decoded map[string]interface{}
			if err := json.Unmarshal(meta, &decoded); err != nil || !opts.Filter.Match(decoded) {
				continue
			}
		}
		hits = append(hits, SearchHit{ExternalID: ext, Score: score, Metadata: meta})
	}

	sortHitsByScore(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func sortHitsByScore(hits []SearchHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score < hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

// Stats reports the per-collection figures spec.md §6's stats()
// operation surfaces.
type Stats struct {
	Count       int
	Dim         int
	Metric      string
	Codec       string
	MemoryBytes int64
	DiskBytes   int64
}

func (c *Collection) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.store.Len()
	memBytes := int64(count) * int64(c.codec.BytesPerVector(c.cfg.Dim))
	memBytes += int64(c.index.Size()) * int64(c.cfg.HNSW.M) * 2 * 4 // rough neighbor-list estimate

	diskBytes := fileSize(filepath.Join(c.dir, "vectors.bin"))
	diskBytes += fileSize(filepath.Join(c.dir, "raw.bin"))
	diskBytes += fileSize(filepath.Join(c.dir, "meta.log"))
	diskBytes += fileSize(filepath.Join(c.dir, walFileName))

	return Stats{
		Count:       count,
		Dim:         c.cfg.Dim,
		Metric:      c.cfg.Metric.String(),
		Codec:       c.codec.Kind().String(),
		MemoryBytes: memBytes,
		DiskBytes:   diskBytes,
	}
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// needsSnapshot reports whether any of spec.md §4.5's snapshot
// triggers has fired.
func (c *Collection) needsSnapshot() bool {
	if c.opsSinceSnapshot >= c.cfg.SnapshotTriggers.MaxOps {
		return true
	}
	walSize := fileSize(filepath.Join(c.dir, walFileName))
	return walSize > c.cfg.SnapshotTriggers.MaxWALBytes
}

// Flush forces a snapshot regardless of trigger state, per spec.md
// §6's explicit flush() operation.
func (c *Collection) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Collection) maybeSnapshot() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.needsSnapshot() {
		return nil
	}
	return c.snapshotLocked()
}

// snapshotLocked refuses to run while c.codec is still buffering inserts
// for training (spec.md §9): those records have no durable copy besides
// the WAL, so writing a snapshot now and rotating the WAL against it
// would discard them. The caller's WAL suffix is left untouched and
// recovery will re-buffer it on reopen.
func (c *Collection) snapshotLocked() error {
	if !c.codec.Trained() {
		return fmt.Errorf("collection %s: %w", c.Name, verrors.ErrNotTrained)
	}
	if err := c.log.Flush(); err != nil {
		return fmt.Errorf("collection %s: flush wal: %w", c.Name, err)
	}

	checkpointLSN, err := c.log.Append(wal.OpCheckpoint, wal.EncodeCheckpointMarker(wal.CheckpointMarker{}))
	if err != nil {
		return fmt.Errorf("collection %s: append checkpoint: %w", c.Name, err)
	}

	codecState, err := marshalCodecState(c.codec)
	if err != nil {
		return err
	}
	persisted := persistedState{Store: c.store.ManifestSnapshot(), Codec: codecState}
	persistedBytes, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("collection %s: marshal persisted state: %w", c.Name, err)
	}

	var graphBuf bytes.Buffer
	if err := c.index.Serialize(&graphBuf); err != nil {
		return fmt.Errorf("collection %s: serialize graph: %w", c.Name, err)
	}

	manifest := snapshot.Manifest{
		LSN:            checkpointLSN,
		CollectionName: c.Name,
		Dim:            c.cfg.Dim,
		Metric:         c.cfg.Metric.String(),
		CodecKind:      c.codec.Kind().String(),
		Stride:         c.codec.BytesPerVector(c.cfg.Dim),
		KeepRaw:        c.cfg.KeepRaw,
		RawStride:      c.cfg.Dim * 4,
		VectorCount:    c.store.Len(),
		CreatedAtUnix:  time.Now().Unix(),
	}
	src := snapshot.SourceFiles{
		VectorsPath: filepath.Join(c.dir, "vectors.bin"),
		MetaPath:    filepath.Join(c.dir, "meta.log"),
	}
	if c.cfg.KeepRaw {
		src.RawPath = filepath.Join(c.dir, "raw.bin")
	}

	newDir, err := snapshot.Write(c.dir, manifest, persistedBytes, graphBuf.Bytes(), src)
	if err != nil {
		return fmt.Errorf("collection %s: write snapshot: %w", c.Name, err)
	}

	if err := c.rotateWAL(checkpointLSN); err != nil {
		return fmt.Errorf("collection %s: rotate wal: %w", c.Name, err)
	}

	if c.lastSnapshotDir != "" {
		_ = snapshot.PruneExcept(c.dir, newDir)
	}
	c.lastSnapshotDir = newDir
	c.lastSnapshotLSN = checkpointLSN
	c.opsSinceSnapshot = 0
	return nil
}

// rotateWAL discards every WAL record the just-written snapshot now
// makes redundant (lsn <= keepAfterLSN, which includes the checkpoint
// record itself). The writer must be closed before the file is
// rewritten out from under it and reopened afterward, since an open
// os.File's append position does not follow a rename of its path.
//
// wal.Open numbers LSNs purely from the records still physically in
// the file, so once TruncateBefore drops everything up to and
// including the checkpoint, a reopen with nothing left to replay would
// otherwise restart numbering at 0 — directly colliding with the
// snapshot's own LSN and making the next write's record look already
// reflected in the snapshot on a future recovery. BumpNextLSN keeps
// numbering strictly above keepAfterLSN regardless of what, if
// anything, survived the truncation.
func (c *Collection) rotateWAL(keepAfterLSN uint64) error {
	path := filepath.Join(c.dir, walFileName)
	if err := c.log.Close(); err != nil {
		return fmt.Errorf("close wal before rotate: %w", err)
	}
	if err := wal.TruncateBefore(path, keepAfterLSN); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	w, err := wal.Open(path, wal.DefaultConfig())
	if err != nil {
		return fmt.Errorf("reopen wal: %w", err)
	}
	w.BumpNextLSN(keepAfterLSN + 1)
	c.log = w
	return nil
}

// Close flushes a final snapshot and releases every open file handle. If
// a trainable codec is still buffering inserts, no snapshot is taken —
// snapshotLocked's ErrNotTrained is expected here, not a failure, since
// the buffered records remain safe in the WAL for the next recover().
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if !c.poisoned {
		if err := c.snapshotLocked(); err != nil && !errors.Is(err, verrors.ErrNotTrained) && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
