package room

import "sync/atomic"

// Synthetic is an in-process participant such as a bot. Emitted events go
// straight to its listeners.
type Synthetic struct {
	*Base
	closed atomic.Bool
}

func NewSynthetic(id string) *Synthetic {
	return &Synthetic{Base: NewBase(id)}
}

func (s *Synthetic) Emit(event string, payload any) error {
	if s.closed.Load() {
		return ErrConnectionClosed
	}
	s.Dispatch(event, payload)
	return nil
}

func (s *Synthetic) IsSynthetic() bool { return true }

// Close stops delivery; later emits fail
func (s *Synthetic) Close() {
	s.closed.Store(true)
}
