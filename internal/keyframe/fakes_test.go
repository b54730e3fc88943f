package keyframe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
)

// fakeVideo encodes the frame index in the frame width so oracles can tell
// which frame they received. Every pixel is B=1 G=2 R=3.
type fakeVideo struct {
	count     int
	countErr  error
	failSeek  map[int]bool
	failRead  map[int]bool
	malformed map[int]bool

	pos    int
	seeks  []int
	closed int
}

func (v *fakeVideo) FrameCount() (int, error) {
	return v.count, v.countErr
}

func (v *fakeVideo) Seek(index int) error {
	v.seeks = append(v.seeks, index)
	if v.failSeek[index] {
		return errors.New("seek failed")
	}
	v.pos = index
	return nil
}

func (v *fakeVideo) Read() (Frame, error) {
	if v.pos >= v.count || v.failRead[v.pos] {
		return Frame{}, errors.New("end of stream")
	}
	if v.malformed[v.pos] {
		return Frame{Width: v.pos + 1, Height: 1, Space: BGR, Pix: []byte{1}}, nil
	}

	w := v.pos + 1
	pix := make([]byte, 0, w*3)
	for range w {
		pix = append(pix, 1, 2, 3)
	}
	return Frame{Width: w, Height: 1, Space: BGR, Pix: pix}, nil
}

func (v *fakeVideo) Close() error {
	v.closed++
	return nil
}

type fakeOracle struct {
	space  ColorSpace
	fail   map[int]bool
	extra  []RawDetection
	delay  func(idx int) time.Duration
	onCall func(idx int)

	mu         sync.Mutex
	calls      []int
	firstBytes []byte

	active    atomic.Int32
	maxActive atomic.Int32
	closed    atomic.Int32
}

func (o *fakeOracle) ColorSpace() ColorSpace {
	return o.space
}

func (o *fakeOracle) Detect(ctx context.Context, frame Frame) ([]RawDetection, error) {
	n := o.active.Add(1)
	defer o.active.Add(-1)
	for {
		cur := o.maxActive.Load()
		if n <= cur || o.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	idx := frame.Width - 1
	o.mu.Lock()
	o.calls = append(o.calls, idx)
	o.firstBytes = append(o.firstBytes, frame.Pix[0])
	o.mu.Unlock()

	if o.onCall != nil {
		o.onCall(idx)
	}
	if o.delay != nil {
		select {
		case <-time.After(o.delay(idx)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if o.fail[idx] {
		return nil, errors.New("inference failed")
	}

	out := []RawDetection{
		{Class: float64(idx % 80), Confidence: 0.5, Box: []float64{0, 0, float64(idx), 1}},
	}
	return append(out, o.extra...), nil
}

func (o *fakeOracle) Close() error {
	o.closed.Add(1)
	return nil
}
