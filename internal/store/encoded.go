package store

import (
	"fmt"
	"os"
	"sync"
)

// encodedFile is a fixed-stride file addressed by internal id: record
// i lives at byte offset i*stride. Writes go through an append/seek
// path on the *os.File handle (mirroring DiskGraph.WriteNode); reads
// are served from a memory-mapped read-only view that is remapped
// whenever the file grows past the current mapping, per spec.md
// §4.3's "memory-mapped read-only, writes through an append path"
// split.
type encodedFile struct {
	mu     sync.RWMutex
	f      *os.File
	stride int
	mapped mmapping // nil until the first successful mmap
	size   int64    // bytes currently mapped
}

func openEncodedFile(path string, stride int) (*encodedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	ef := &encodedFile{f: f, stride: stride}
	if err := ef.remap(); err != nil {
		f.Close()
		return nil, err
	}
	return ef, nil
}

// remap grows the mmap to cover the file's current size. A zero-length
// file is left unmapped; WriteAt/ReadAt fall back to direct file I/O
// in that case.
func (ef *encodedFile) remap() error {
	stat, err := ef.f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if stat.Size() == ef.size {
		return nil
	}
	if ef.mapped != nil {
		if err := ef.mapped.unmap(); err != nil {
			return fmt.Errorf("unmap: %w", err)
		}
		ef.mapped = nil
	}
	if stat.Size() == 0 {
		ef.size = 0
		return nil
	}
	m, err := mmapReadOnly(ef.f, stat.Size())
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	ef.mapped = m
	ef.size = stat.Size()
	return nil
}

// WriteAt writes record id's payload, growing the file if id is past
// the current end, then remaps so subsequent reads see the new bytes.
func (ef *encodedFile) WriteAt(id uint32, payload []byte) error {
	ef.mu.Lock()
	defer ef.mu.Unlock()

	if len(payload) != ef.stride {
		return fmt.Errorf("payload length %d does not match stride %d", len(payload), ef.stride)
	}
	offset := int64(id) * int64(ef.stride)
	if _, err := ef.f.WriteAt(payload, offset); err != nil {
		return err
	}
	if err := ef.f.Sync(); err != nil {
		return err
	}
	return ef.remap()
}

// ReadAt returns a copy of record id's payload.
func (ef *encodedFile) ReadAt(id uint32) ([]byte, error) {
	ef.mu.RLock()
	defer ef.mu.RUnlock()

	offset := int64(id) * int64(ef.stride)
	if offset+int64(ef.stride) > ef.size {
		// Not yet reflected in the mapping (or mapping not built);
		// fall back to a direct read so a caller racing a fresh
		// WriteAt still sees correct bytes.
		buf := make([]byte, ef.stride)
		if _, err := ef.f.ReadAt(buf, offset); err != nil {
			return nil, err
		}
		return buf, nil
	}
	out := make([]byte, ef.stride)
	copy(out, ef.mapped.bytes()[offset:offset+int64(ef.stride)])
	return out, nil
}

func (ef *encodedFile) Close() error {
	ef.mu.Lock()
	defer ef.mu.Unlock()
	if ef.mapped != nil {
		if err := ef.mapped.unmap(); err != nil {
			ef.f.Close()
			return err
		}
	}
	return ef.f.Close()
}

// mmapping abstracts over the platform-specific mapping handle so
// encoded.go stays free of build tags; see mmap_unix.go/mmap_other.go.
type mmapping interface {
	bytes() []byte
	unmap() error
}
