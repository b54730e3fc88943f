package keyframe

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
)

// Serialized gives every Detect call exclusive access to one oracle.
type Serialized struct {
	mu     sync.Mutex
	oracle Oracle
}

func Serialize(o Oracle) *Serialized {
	return &Serialized{oracle: o}
}

func (s *Serialized) ColorSpace() ColorSpace {
	return s.oracle.ColorSpace()
}

func (s *Serialized) Detect(ctx context.Context, frame Frame) ([]RawDetection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.oracle.Detect(ctx, frame)
}

func (s *Serialized) Close() error {
	return closeOracle(s.oracle)
}

// Pool hands each Detect call an instance nobody else is using. Callers wait
// for a free instance or for ctx to end.
type Pool struct {
	space ColorSpace
	all   []Oracle
	free  chan Oracle
}

func NewPool(oracles ...Oracle) (*Pool, error) {
	if len(oracles) == 0 {
		return nil, errors.New("pool needs at least one oracle")
	}

	for i, o := range oracles {
		if o == nil {
			return nil, errors.Newf("oracle %d is nil", i)
		}
	}

	space := oracles[0].ColorSpace()
	free := make(chan Oracle, len(oracles))
	for i, o := range oracles {
		if o.ColorSpace() != space {
			return nil, errors.Newf("oracle %d expects %s, pool expects %s", i, o.ColorSpace(), space)
		}
		free <- o
	}

	return &Pool{space: space, all: oracles, free: free}, nil
}

func (p *Pool) Size() int {
	return len(p.all)
}

func (p *Pool) ColorSpace() ColorSpace {
	return p.space
}

func (p *Pool) Detect(ctx context.Context, frame Frame) ([]RawDetection, error) {
	var o Oracle
	select {
	case o = <-p.free:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.free <- o }()

	return o.Detect(ctx, frame)
}

func (p *Pool) Close() error {
	var errs error
	for _, o := range p.all {
		if err := closeOracle(o); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func closeOracle(o Oracle) error {
	if c, ok := o.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
