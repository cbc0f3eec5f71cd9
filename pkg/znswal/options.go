package znswal

// Option configures a Shim at construction, mirroring the teacher's
// functional-options shape.
type Option interface {
	apply(*Shim)
}

// OptionFunc adapts a plain function to Option.
type OptionFunc func(*Shim)

func (f OptionFunc) apply(s *Shim) { f(s) }

// WithRoot enables ZNS-WAL mode against root at construction time, instead
// of requiring a separate Enable call.
func WithRoot(root string) Option {
	return OptionFunc(func(s *Shim) {
		s.initialRoot = root
	})
}
