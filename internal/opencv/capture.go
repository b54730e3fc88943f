// Package opencv adapts gocv video capture and DNN inference to the keyframe
// analyzer.
package opencv

import (
	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

var ErrReadFailed = errors.New("frame read failed")

// Capture is a keyframe.VideoResource backed by an OpenCV decoder. Frames are
// emitted in BGR, the decoder's native order.
type Capture struct {
	path string
	vc   *gocv.VideoCapture
	mat  gocv.Mat
}

func Open(path string) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		if vc != nil {
			vc.Close()
		}
		return nil, errors.Wrapf(err, "open video %s", path)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Newf("open video %s: capture not opened", path)
	}

	return &Capture{
		path: path,
		vc:   vc,
		mat:  gocv.NewMat(),
	}, nil
}

// OpenVideo is Open typed for callers that only need a keyframe.VideoResource.
func OpenVideo(path string) (keyframe.VideoResource, error) {
	c, err := Open(path)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Capture) FrameCount() (int, error) {
	n := c.vc.Get(gocv.VideoCaptureFrameCount)
	if n < 0 {
		return 0, errors.Newf("negative frame count %v", n)
	}
	return int(n), nil
}

func (c *Capture) Seek(index int) error {
	if index < 0 {
		return errors.Newf("seek to negative frame %d", index)
	}
	c.vc.Set(gocv.VideoCapturePosFrames, float64(index))
	return nil
}

func (c *Capture) Read() (keyframe.Frame, error) {
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return keyframe.Frame{}, ErrReadFailed
	}
	if c.mat.Type() != gocv.MatTypeCV8UC3 {
		return keyframe.Frame{}, errors.Wrapf(ErrReadFailed, "unexpected mat type %v", c.mat.Type())
	}

	return keyframe.Frame{
		Width:  c.mat.Cols(),
		Height: c.mat.Rows(),
		Space:  keyframe.BGR,
		Pix:    c.mat.ToBytes(),
	}, nil
}

func (c *Capture) Close() error {
	matErr := c.mat.Close()
	if err := c.vc.Close(); err != nil {
		return err
	}
	return matErr
}
