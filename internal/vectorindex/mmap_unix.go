//go:build !windows

package vectorindex

import (
	"golang.org/x/sys/unix"
)

// platformHandles holds nothing extra on unix: unix.Munmap operates
// directly on the mapped byte slice.
type platformHandles struct{}

func (s *mmapStore) mmap(size int64) error {
	data, err := unix.Mmap(int(s.file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	s.mapped = data
	return nil
}

func (s *mmapStore) munmap() error {
	if s.mapped == nil {
		return nil
	}
	err := unix.Munmap(s.mapped)
	s.mapped = nil
	return err
}
