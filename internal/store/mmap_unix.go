//go:build linux || darwin

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// unixMapping wraps a golang.org/x/sys/unix.Mmap'd region, the same
// dependency the teacher already carries for low-level syscall access.
type unixMapping struct {
	data []byte
}

func mmapReadOnly(f *os.File, size int64) (mmapping, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &unixMapping{data: data}, nil
}

func (m *unixMapping) bytes() []byte {
	return m.data
}

func (m *unixMapping) unmap() error {
	return unix.Munmap(m.data)
}
