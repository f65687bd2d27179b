package bridge

import (
	"github.com/chazu/objcbridge/foreign"
)

// scratch owns native memory allocated for the duration of one call.
// release frees everything and is safe to defer on every exit path.
type scratch struct {
	mem  foreign.Memory
	ptrs []foreign.Pointer
}

func newScratch(mem foreign.Memory) *scratch {
	return &scratch{mem: mem}
}

func (s *scratch) alloc(size int) (foreign.Pointer, error) {
	p, err := s.mem.Malloc(size)
	if err != nil {
		return 0, err
	}
	s.ptrs = append(s.ptrs, p)
	return p, nil
}

func (s *scratch) release() {
	for i := len(s.ptrs) - 1; i >= 0; i-- {
		s.mem.Free(s.ptrs[i])
	}
	s.ptrs = nil
}
