package geo

import "context"

// Static is a Provider pinned to one coordinate, for fixed installations
// where the device never moves.
type Static struct {
	c Coordinate
}

// NewStatic returns a provider that always resolves c.
func NewStatic(c Coordinate) *Static {
	return &Static{c: c}
}

// Available reports whether the configured coordinate is in range.
func (s *Static) Available() bool {
	return s.c.Valid()
}

// AcquireFix returns the configured coordinate.
func (s *Static) AcquireFix(ctx context.Context, opts Options) (Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}
	if !s.c.Valid() {
		return Coordinate{}, unavailable("static coordinate %v out of range", s.c)
	}
	return s.c, nil
}

var _ Provider = (*Static)(nil)
