package keyframe

import "github.com/cockroachdb/errors"

type ColorSpace int

const (
	BGR ColorSpace = iota
	RGB
)

func (c ColorSpace) String() string {
	switch c {
	case BGR:
		return "bgr"
	case RGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// Frame is a packed 8-bit, 3-channel, row-major image.
type Frame struct {
	Width  int
	Height int
	Space  ColorSpace
	Pix    []byte
}

func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Wrapf(ErrMalformedFrame, "invalid dimensions %dx%d", f.Width, f.Height)
	}
	if want := f.Width * f.Height * 3; len(f.Pix) != want {
		return errors.Wrapf(ErrMalformedFrame, "expected %d bytes, got %d", want, len(f.Pix))
	}
	if f.Space != BGR && f.Space != RGB {
		return errors.Wrapf(ErrMalformedFrame, "unknown color space %d", int(f.Space))
	}
	return nil
}

// Convert returns the frame in the requested color space. The receiver is
// never modified; a new buffer is allocated when channels must be swapped.
func (f Frame) Convert(to ColorSpace) (Frame, error) {
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	if to != BGR && to != RGB {
		return Frame{}, errors.Newf("unsupported target color space %d", int(to))
	}
	if f.Space == to {
		return f, nil
	}

	// BGR and RGB differ only in the order of the first and third channel.
	pix := make([]byte, len(f.Pix))
	for i := 0; i < len(pix); i += 3 {
		pix[i] = f.Pix[i+2]
		pix[i+1] = f.Pix[i+1]
		pix[i+2] = f.Pix[i]
	}

	return Frame{Width: f.Width, Height: f.Height, Space: to, Pix: pix}, nil
}
