//go:build windows

package vectorindex

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// platformHandles holds the Windows file-mapping handle that must
// outlive the mapped view and be closed alongside it.
type platformHandles struct {
	mapping windows.Handle
}

func (s *mmapStore) mmap(size int64) error {
	mapping, err := windows.CreateFileMapping(windows.Handle(s.file.Fd()), nil, windows.PAGE_READWRITE, uint32(size>>32), uint32(size&0xffffffff), nil)
	if err != nil {
		return fmt.Errorf("vectorindex: CreateFileMapping: %w", err)
	}

	addr, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(mapping)
		return fmt.Errorf("vectorindex: MapViewOfFile: %w", err)
	}

	s.platform.mapping = mapping
	s.mapped = unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return nil
}

func (s *mmapStore) munmap() error {
	if s.mapped == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&s.mapped[0]))
	s.mapped = nil
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return fmt.Errorf("vectorindex: UnmapViewOfFile: %w", err)
	}
	if s.platform.mapping != 0 {
		err := windows.CloseHandle(s.platform.mapping)
		s.platform.mapping = 0
		return err
	}
	return nil
}
