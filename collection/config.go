// Package collection implements the collection manager from
// spec.md §4.6: one instance of (vector store + HNSW index + WAL +
// snapshot) per named collection, plus a Manager that owns the set of
// collections and their root directory. Grounded on
// pkg/tenant/manager.go's Manager/map[string]*T shape, repurposed from
// tenant quota bookkeeping to collection lifecycle.
package collection

import (
	"fmt"

	"github.com/vectorlite/vectorlite/internal/codec"
	"github.com/vectorlite/vectorlite/internal/graph"
	"github.com/vectorlite/vectorlite/internal/kernel"
	"github.com/vectorlite/vectorlite/internal/verrors"
)

// FormatVersion is written into every manifest.json; opening a newer
// version than this binary understands fails with ErrIncompatibleVersion.
const FormatVersion = 1

// SnapshotTriggers controls when the background scheduler (or an
// explicit Flush) decides a collection needs a new snapshot, per
// spec.md §4.5.
type SnapshotTriggers struct {
	MaxWALBytes int64
	MaxOps      int64
}

// DefaultSnapshotTriggers matches spec.md §4.5's stated defaults: 64MiB
// of WAL growth or 100k ops since the last snapshot.
func DefaultSnapshotTriggers() SnapshotTriggers {
	return SnapshotTriggers{
		MaxWALBytes: 64 * 1024 * 1024,
		MaxOps:      100_000,
	}
}

// Config is a collection's fixed-for-life configuration, per spec.md §3.
type Config struct {
	Dim              int
	Metric           kernel.Metric
	CodecKind        codec.Kind
	SQ8Mode          codec.SQ8Mode
	KeepRaw          bool
	HNSW             graph.Config
	SnapshotTriggers SnapshotTriggers
	// TrainingSetSize is how many raw vectors PerDimension-SQ8/PQ
	// buffer before fitting their codebook (spec.md §9's "first N≥1024
	// vectors" for SQ8; PQCodec.Train enforces its own ≥256 minimum).
	TrainingSetSize int
}

// DefaultConfig returns the spec's stated parameter defaults for a
// collection of the given dimension with no quantization and
// originals retained (matching "keep_raw, default true for
// None/SQ8, false for Binary").
func DefaultConfig(dim int, metric kernel.Metric) Config {
	return Config{
		Dim:              dim,
		Metric:           metric,
		CodecKind:        codec.None,
		KeepRaw:          true,
		HNSW:             graph.DefaultConfig(),
		SnapshotTriggers: DefaultSnapshotTriggers(),
		TrainingSetSize:  1024,
	}
}

// Validate rejects configs spec.md §7 calls out as InvalidConfig.
func (c Config) Validate() error {
	if c.Dim <= 0 {
		return fmt.Errorf("collection: dim must be positive: %w", verrors.ErrInvalidConfig)
	}
	if c.CodecKind == codec.Binary && c.KeepRaw {
		// Allowed by spec (keep_raw is a collection-level option), but
		// the stated default for Binary is false; callers opting in
		// explicitly pay for both the bit-packed and raw files.
	}
	switch c.CodecKind {
	case codec.None, codec.SQ8, codec.Binary, codec.PQ:
	default:
		return fmt.Errorf("collection: unknown codec kind %d: %w", c.CodecKind, verrors.ErrInvalidConfig)
	}
	return nil
}

// manifestJSON is the on-disk shape of <collection>/manifest.json —
// the collection-root manifest from spec.md §6, distinct from the
// per-snapshot manifest.json nested under snap-<lsn>/.
type manifestJSON struct {
	FormatVersion   int     `json:"format_version"`
	Dim             int     `json:"dim"`
	Metric          string  `json:"metric"`
	CodecKind       string  `json:"codec_kind"`
	SQ8Mode         int     `json:"sq8_mode"`
	KeepRaw         bool    `json:"keep_raw"`
	M               int     `json:"m"`
	EfConstruction  int     `json:"ef_construction"`
	EfSearch        int     `json:"ef_search"`
	MaxWALBytes     int64   `json:"snapshot_max_wal_bytes"`
	MaxOps          int64   `json:"snapshot_max_ops"`
	TrainingSetSize int     `json:"training_set_size"`
}

func toManifestJSON(cfg Config) manifestJSON {
	return manifestJSON{
		FormatVersion:   FormatVersion,
		Dim:             cfg.Dim,
		Metric:          cfg.Metric.String(),
		CodecKind:       cfg.CodecKind.String(),
		SQ8Mode:         int(cfg.SQ8Mode),
		KeepRaw:         cfg.KeepRaw,
		M:               cfg.HNSW.M,
		EfConstruction:  cfg.HNSW.EfConstruction,
		EfSearch:        cfg.HNSW.EfSearch,
		MaxWALBytes:     cfg.SnapshotTriggers.MaxWALBytes,
		MaxOps:          cfg.SnapshotTriggers.MaxOps,
		TrainingSetSize: cfg.TrainingSetSize,
	}
}

func fromManifestJSON(m manifestJSON) (Config, error) {
	if m.FormatVersion > FormatVersion {
		return Config{}, fmt.Errorf("collection: manifest format_version %d newer than this binary's %d: %w",
			m.FormatVersion, FormatVersion, verrors.ErrIncompatibleVersion)
	}
	metric, err := parseMetric(m.Metric)
	if err != nil {
		return Config{}, err
	}
	kind, err := parseCodecKind(m.CodecKind)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Dim:       m.Dim,
		Metric:    metric,
		CodecKind: kind,
		SQ8Mode:   codec.SQ8Mode(m.SQ8Mode),
		KeepRaw:   m.KeepRaw,
		HNSW: graph.Config{
			M:              m.M,
			EfConstruction: m.EfConstruction,
			EfSearch:       m.EfSearch,
		},
		SnapshotTriggers: SnapshotTriggers{
			MaxWALBytes: m.MaxWALBytes,
			MaxOps:      m.MaxOps,
		},
		TrainingSetSize: m.TrainingSetSize,
	}
	if cfg.TrainingSetSize <= 0 {
		cfg.TrainingSetSize = 1024
	}
	return cfg, nil
}

func parseMetric(s string) (kernel.Metric, error) {
	switch s {
	case "cosine":
		return kernel.Cosine, nil
	case "l2":
		return kernel.L2, nil
	case "dot":
		return kernel.Dot, nil
	default:
		return 0, fmt.Errorf("collection: unknown metric %q: %w", s, verrors.ErrCorrupt)
	}
}

func parseCodecKind(s string) (codec.Kind, error) {
	switch s {
	case "none":
		return codec.None, nil
	case "sq8":
		return codec.SQ8, nil
	case "binary":
		return codec.Binary, nil
	case "pq":
		return codec.PQ, nil
	default:
		return 0, fmt.Errorf("collection: unknown codec kind %q: %w", s, verrors.ErrCorrupt)
	}
}
