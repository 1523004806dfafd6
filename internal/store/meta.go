package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// metaLog is the append-only metadata file: each record is a u32
// length prefix followed by that many bytes of JSON. Updates append a
// new record and the caller repoints its Record.MetaOffset/MetaLen;
// the stale region is never reclaimed, and snapshots copy the file as
// it is.
type metaLog struct {
	mu sync.Mutex
	f  *os.File
}

func openMetaLog(path string) (*metaLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &metaLog{f: f}, nil
}

// Append writes a length-prefixed record and returns its offset and
// length for the caller's Record bookkeeping.
func (m *metaLog) Append(payload []byte) (offset int64, length int32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	off, err := m.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, fmt.Errorf("seek: %w", err)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := m.f.Write(lenBuf[:]); err != nil {
		return 0, 0, fmt.Errorf("write length prefix: %w", err)
	}
	if len(payload) > 0 {
		if _, err := m.f.Write(payload); err != nil {
			return 0, 0, fmt.Errorf("write payload: %w", err)
		}
	}
	if err := m.f.Sync(); err != nil {
		return 0, 0, fmt.Errorf("sync: %w", err)
	}
	// The stored offset points past the length prefix, straight at
	// the payload, so ReadAt doesn't need to re-derive it.
	return off + 4, int32(len(payload)), nil
}

// ReadAt returns a copy of the payload at offset with the given
// length. A zero length (no metadata attached) returns nil, nil.
func (m *metaLog) ReadAt(offset int64, length int32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, length)
	if _, err := m.f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return buf, nil
}

func (m *metaLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.f.Close()
}
