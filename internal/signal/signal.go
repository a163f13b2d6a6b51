// Package signal provides synchronous, in-process event dispatch between a
// World, its population strategy, and any lineage trackers or statistics
// collectors listening to it.
package signal

// Signal is a named event with an ordered list of subscriber actions.
type Signal[T any] struct {
	name    string
	actions []func(T)
}

func NewSignal[T any](name string) *Signal[T] {
	return &Signal[T]{name: name}
}

func (s *Signal[T]) Name() string {
	return s.name
}

// AddAction subscribes fn. Actions run in subscription order.
func (s *Signal[T]) AddAction(fn func(T)) {
	if fn == nil {
		return
	}
	s.actions = append(s.actions, fn)
}

func (s *Signal[T]) NumActions() int {
	return len(s.actions)
}

// Trigger runs every action inline on the caller's goroutine.
func (s *Signal[T]) Trigger(v T) {
	for _, fn := range s.actions {
		fn(v)
	}
}
