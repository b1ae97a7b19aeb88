package probe

// Result is the outcome of one probe: either a Value or an Err.
type Result[T any] struct {
	Value T
	Err   error
}

// Succeed wraps a successful probe value.
func Succeed[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a probe failure.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the probe succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}
