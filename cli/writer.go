package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/depthcam/audio"
	"go.viam.com/depthcam/dcimage"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/frame"
)

// frameWriter writes the images and clouds of local frames. It runs on the reading goroutine.
type frameWriter struct {
	dir        string
	imageExt   string
	binaryPCD  bool
	limit      int
	sampleRate int

	mu      sync.Mutex
	written int
	bytes   int64
	err     error
	audio   *audio.Buffer
	done    chan struct{}
}

func newFrameWriter(dir, imageFormat string, binaryPCD bool, limit int, dt dcmode.DeviceType) (*frameWriter, error) {
	switch imageFormat {
	case "png", "ppm":
	default:
		return nil, errors.Errorf("unsupported image format %q", imageFormat)
	}
	return &frameWriter{
		dir:        dir,
		imageExt:   imageFormat,
		binaryPCD:  binaryPCD,
		limit:      limit,
		sampleRate: sampleRate(dt),
		done:       make(chan struct{}),
	}, nil
}

func (w *frameWriter) write(lf *frame.LocalFrame) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written >= w.limit || w.err != nil {
		return
	}
	if err := w.writeFrame(lf); err != nil {
		w.err = err
		close(w.done)
		return
	}
	w.written++
	if w.written == w.limit {
		close(w.done)
	}
}

// finish writes the audio of the whole capture and returns the first error met.
func (w *frameWriter) finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil || w.audio == nil || w.audio.Frames() == 0 {
		return w.err
	}
	return w.writeAudio()
}

func (w *frameWriter) path(id uint64, name string) string {
	return filepath.Join(w.dir, fmt.Sprintf("frame_%06d_%s", id, name))
}

func (w *frameWriter) account(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	w.bytes += info.Size()
	return nil
}

func (w *frameWriter) writeImage(id uint64, name string, pix []byte, width, height int) error {
	path := w.path(id, name+"."+w.imageExt)
	save := dcimage.SavePNG
	if w.imageExt == "ppm" {
		save = dcimage.SavePPM
	}
	if err := save(path, pix, width, height); err != nil {
		return err
	}
	return w.account(path)
}

func (w *frameWriter) writeFrame(lf *frame.LocalFrame) error {
	if len(lf.RGBAColor) > 0 {
		if err := w.writeImage(lf.IDCapture, "color", lf.RGBAColor, lf.ColorWidth, lf.ColorHeight); err != nil {
			return err
		}
	}
	if len(lf.DepthImage) > 0 {
		if err := w.writeImage(lf.IDCapture, "depth", lf.DepthImage, lf.DepthWidth, lf.DepthHeight); err != nil {
			return err
		}
	}
	if len(lf.InfraImage) > 0 {
		if err := w.writeImage(lf.IDCapture, "infra", lf.InfraImage, lf.DepthWidth, lf.DepthHeight); err != nil {
			return err
		}
	}
	if lf.Cloud.Len() > 0 {
		path := w.path(lf.IDCapture, "cloud.pcd")
		if err := w.writeCloud(path, &lf.Cloud); err != nil {
			return err
		}
		if err := w.account(path); err != nil {
			return err
		}
	}
	if lf.Audio.Channels > 0 && len(lf.Audio.Samples) > 0 {
		if w.audio == nil {
			w.audio = audio.NewBuffer(lf.Audio.Channels, 0)
		}
		if err := w.audio.Append(lf.Audio.Channels, lf.Audio.Samples); err != nil {
			return err
		}
	}
	return nil
}

func (w *frameWriter) writeCloud(path string, cloud *frame.Cloud) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	buf := bufio.NewWriter(f)
	pcdType := frame.PCDAscii
	if w.binaryPCD {
		pcdType = frame.PCDBinary
	}
	if err := frame.WritePCD(buf, cloud, pcdType); err != nil {
		return err
	}
	return buf.Flush()
}

func (w *frameWriter) writeAudio() error {
	path := filepath.Join(w.dir, "audio.wav")
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	err = audio.WriteWAV(f, w.sampleRate, w.audio.Channels(), w.audio.Samples(), true)
	if err = multierr.Combine(err, f.Close()); err != nil {
		return err
	}
	return w.account(path)
}
