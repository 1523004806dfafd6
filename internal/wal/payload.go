package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Payload codecs for each Op. Every payload is a flat, deterministic
// binary encoding (no reflection, no JSON) so replay never depends on
// struct tags or field order drifting between versions — length-prefixed
// strings and byte blobs throughout, in the same style as the
// writeString16/readString16 helpers this package's WAL framing is
// grounded on.

func putString16(buf *bytes.Buffer, s string) {
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func readString16(r *bytes.Reader) (string, error) {
	var n [2]byte
	if _, err := readFull(r, n[:]); err != nil {
		return "", err
	}
	length := binary.LittleEndian.Uint16(n[:])
	b := make([]byte, length)
	if _, err := readFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func putBytes32(buf *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

func readBytes32(r *bytes.Reader) ([]byte, error) {
	var n [4]byte
	if _, err := readFull(r, n[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(n[:])
	b := make([]byte, length)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func putVector(buf *bytes.Buffer, vec []float32) {
	var dim [2]byte
	binary.LittleEndian.PutUint16(dim[:], uint16(len(vec)))
	buf.Write(dim[:])
	var f [4]byte
	for _, v := range vec {
		binary.LittleEndian.PutUint32(f[:], math.Float32bits(v))
		buf.Write(f[:])
	}
}

func readVector(r *bytes.Reader) ([]float32, error) {
	var dim [2]byte
	if _, err := readFull(r, dim[:]); err != nil {
		return nil, err
	}
	d := int(binary.LittleEndian.Uint16(dim[:]))
	vec := make([]float32, d)
	var f [4]byte
	for i := 0; i < d; i++ {
		if _, err := readFull(r, f[:]); err != nil {
			return nil, err
		}
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(f[:]))
	}
	return vec, nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	n, err := r.Read(b)
	if err != nil {
		return n, err
	}
	if n != len(b) {
		return n, fmt.Errorf("wal: short read: got %d want %d", n, len(b))
	}
	return n, nil
}

// VectorMutation is the shared payload shape for OpInsert and
// OpUpsert: a collection, the caller's external id, the raw vector,
// and opaque metadata bytes (already serialized by the caller).
type VectorMutation struct {
	Collection string
	ExternalID string
	Vector     []float32
	Metadata   []byte
}

func EncodeVectorMutation(m VectorMutation) []byte {
	var buf bytes.Buffer
	putString16(&buf, m.Collection)
	putString16(&buf, m.ExternalID)
	putVector(&buf, m.Vector)
	putBytes32(&buf, m.Metadata)
	return buf.Bytes()
}

func DecodeVectorMutation(payload []byte) (VectorMutation, error) {
	r := bytes.NewReader(payload)
	var m VectorMutation
	var err error
	if m.Collection, err = readString16(r); err != nil {
		return m, fmt.Errorf("wal: decode vector mutation: %w", err)
	}
	if m.ExternalID, err = readString16(r); err != nil {
		return m, fmt.Errorf("wal: decode vector mutation: %w", err)
	}
	if m.Vector, err = readVector(r); err != nil {
		return m, fmt.Errorf("wal: decode vector mutation: %w", err)
	}
	if m.Metadata, err = readBytes32(r); err != nil {
		return m, fmt.Errorf("wal: decode vector mutation: %w", err)
	}
	return m, nil
}

// DeleteMutation is OpDelete's payload.
type DeleteMutation struct {
	Collection string
	ExternalID string
}

func EncodeDeleteMutation(m DeleteMutation) []byte {
	var buf bytes.Buffer
	putString16(&buf, m.Collection)
	putString16(&buf, m.ExternalID)
	return buf.Bytes()
}

func DecodeDeleteMutation(payload []byte) (DeleteMutation, error) {
	r := bytes.NewReader(payload)
	var m DeleteMutation
	var err error
	if m.Collection, err = readString16(r); err != nil {
		return m, fmt.Errorf("wal: decode delete mutation: %w", err)
	}
	if m.ExternalID, err = readString16(r); err != nil {
		return m, fmt.Errorf("wal: decode delete mutation: %w", err)
	}
	return m, nil
}

// CollectionMutation is the shared payload for OpCreateCollection and
// OpDropCollection. Config is opaque JSON for create, empty for drop.
type CollectionMutation struct {
	Name   string
	Config []byte
}

func EncodeCollectionMutation(m CollectionMutation) []byte {
	var buf bytes.Buffer
	putString16(&buf, m.Name)
	putBytes32(&buf, m.Config)
	return buf.Bytes()
}

func DecodeCollectionMutation(payload []byte) (CollectionMutation, error) {
	r := bytes.NewReader(payload)
	var m CollectionMutation
	var err error
	if m.Name, err = readString16(r); err != nil {
		return m, fmt.Errorf("wal: decode collection mutation: %w", err)
	}
	if m.Config, err = readBytes32(r); err != nil {
		return m, fmt.Errorf("wal: decode collection mutation: %w", err)
	}
	return m, nil
}

// CheckpointMarker is OpCheckpoint's payload: a snapshot LSN. The
// collection package writes it with SnapshotLSN zero and uses the
// checkpoint record's own LSN as the snapshot's LSN; recovery reads
// that LSN from the snapshot manifest and treats checkpoint records
// as markers only, never decoding this payload.
type CheckpointMarker struct {
	SnapshotLSN uint64
}

func EncodeCheckpointMarker(m CheckpointMarker) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], m.SnapshotLSN)
	return buf[:]
}

func DecodeCheckpointMarker(payload []byte) (CheckpointMarker, error) {
	if len(payload) != 8 {
		return CheckpointMarker{}, fmt.Errorf("wal: decode checkpoint marker: want 8 bytes, got %d", len(payload))
	}
	return CheckpointMarker{SnapshotLSN: binary.LittleEndian.Uint64(payload)}, nil
}
