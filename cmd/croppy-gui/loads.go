package main

import (
	"sync"

	"github.com/menta2k/croppy/pkg/media"
)

// loadSeq orders background media loads. Only the most recently started load
// may deliver its result; older ones are released on completion.
type loadSeq struct {
	mu   sync.Mutex
	last uint64
}

func (s *loadSeq) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// finish hands the result of load id to deliver or fail, unless a newer load
// has started since. It reports whether the result was used.
func (s *loadSeq) finish(id uint64, m *media.Media, err error, deliver func(*media.Media), fail func(error)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.last {
		if m != nil {
			m.Release()
		}
		return false
	}
	if err != nil {
		fail(err)
	} else {
		deliver(m)
	}
	return true
}
