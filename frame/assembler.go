package frame

import (
	"context"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/codec"
	"go.viam.com/depthcam/dcimage"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/depthfilter"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
	"go.viam.com/depthcam/transform"
	"go.viam.com/depthcam/utils"
)

// Pipeline stages recorded in the assembler timing.
const (
	StageCapture  = "capture"
	StageRead     = "read"
	StageConvert  = "convert"
	StageResize   = "resize"
	StageFilter   = "filter"
	StageCloud    = "cloud"
	StageCompress = "compress"
	StageLocal    = "local"
)

// Output holds the products of one tick. A product is nil when it was not requested.
type Output struct {
	Local      *LocalFrame
	Compressed *CompressedFrame
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock sets the clock used for frame timestamps and stage timings.
func WithClock(clk clock.Clock) Option {
	return func(a *Assembler) {
		a.clock = clk
	}
}

// WithCompressor replaces the default codecs.
func WithCompressor(c codec.Compressor) Option {
	return func(a *Assembler) {
		a.compressor = c
	}
}

// WithNormalsConnectivity selects the neighbourhood used for cloud normals, 4 by default.
func WithNormalsConnectivity(conn dcmode.Connectivity) Option {
	return func(a *Assembler) {
		a.normalsConn = conn
	}
}

// Assembler runs the per tick pipeline of one device session: capture, reading, conversion,
// filtering, cloud generation and frame generation. It owns the buffers reused from one tick to
// the next and is not safe for concurrent use.
type Assembler struct {
	drv         driver.Driver
	mi          *dcmode.ModeInfos
	logger      logging.Logger
	clock       clock.Clock
	compressor  codec.Compressor
	normalsConn dcmode.Connectivity
	sessionID   uuid.UUID
	filter      *depthfilter.Filter
	timing      *Timing

	capture         CaptureFrame
	afterCaptureTS  time.Time
	rgba            []byte
	hasRGBA         bool
	depthSizedColor []byte
	depth           []uint16
	infra           []uint16
	cloud           []transform.Point3
	mask            depthfilter.Result

	blobSource *calibration.UnifiedCalibration
	blob       []byte
}

// NewAssembler returns the assembler of a session. mi must be the descriptor the driver was
// initialized with.
func NewAssembler(drv driver.Driver, mi *dcmode.ModeInfos, logger logging.Logger, opts ...Option) *Assembler {
	a := &Assembler{
		drv:         drv,
		mi:          mi,
		logger:      logger,
		clock:       clock.New(),
		normalsConn: dcmode.Connectivity4,
		sessionID:   uuid.New(),
		filter:      depthfilter.New(logger.Sublogger("filter")),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.timing = NewTiming(a.clock, defaultTimingSamples)
	return a
}

// SessionID identifies the frames of this assembler.
func (a *Assembler) SessionID() uuid.UUID {
	return a.sessionID
}

// ModeInfos returns the session descriptor.
func (a *Assembler) ModeInfos() *dcmode.ModeInfos {
	return a.mi
}

// Timing returns the stage durations of the last ticks.
func (a *Assembler) Timing() *Timing {
	return a.timing
}

// Capture returns the raw data of the last tick. Its views are only valid until the next one.
func (a *Assembler) Capture() *CaptureFrame {
	return &a.capture
}

// ValidDepthValues returns the number of valid depth pixels of the last tick.
func (a *Assembler) ValidDepthValues() int {
	return a.mask.ValidDepthValues
}

// Process captures one frame and produces the frames requested by the settings. A capture
// failure, including driver.ErrTimeout, is returned as is and nothing is produced.
func (a *Assembler) Process(ctx context.Context, ds settings.DeviceSettings) (Output, error) {
	sw := a.timing.Begin()
	if err := a.drv.CaptureFrame(ctx, a.mi.Timeout()); err != nil {
		return Output{}, err
	}
	a.afterCaptureTS = a.clock.Now()
	sw.Stage(StageCapture)

	a.read(ctx, ds.Data.Capture)
	a.validate()
	sw.Stage(StageRead)

	a.convertColor()
	sw.Stage(StageConvert)

	a.resizeColorToDepth()
	sw.Stage(StageResize)

	a.filterDepth(ds.Filters)
	sw.Stage(StageFilter)

	if ds.Data.Generation.Cloud || ds.Data.Compression.Cloud || ds.Filters.FilterDepthWithCloud {
		a.generateCloud(ds.Filters)
	} else {
		a.cloud = a.cloud[:0]
	}
	sw.Stage(StageCloud)

	var out Output
	if ds.Data.Compression.HasAny() {
		out.Compressed = a.compressedFrame(ds.Data.Compression)
		sw.Stage(StageCompress)
	}
	if ds.Data.Generation.HasAny() {
		out.Local = a.localFrame(ds.Data.Generation)
		sw.Stage(StageLocal)
	}
	a.mi.IncrementCaptureID()
	return out, nil
}

func (a *Assembler) read(ctx context.Context, cs settings.CaptureSettings) {
	a.capture = CaptureFrame{}
	c := &a.capture
	if cs.Audio && a.mi.HasAudio() {
		c.Audio.Channels, c.Audio.Samples = a.drv.ReadFromMicrophones()
	}
	if cs.IMU && a.mi.HasIMU() {
		c.IMU, c.HasIMU = a.drv.ReadFromIMU()
	}
	if cs.BodyTracking && a.mi.HasBodyTracking() {
		c.Bodies, c.BodiesIDMap = a.drv.ReadBodies(ctx)
	}
	if cs.Color && a.mi.HasColor() {
		img := a.drv.ReadColorImage()
		c.Color = ColorView{Present: !img.Empty(), ColorImage: img}
	}
	if cs.Depth && a.mi.HasDepth() {
		data := a.drv.ReadDepthImage()
		c.Depth = DepthView{Present: len(data) != 0, Width: a.mi.DepthWidth(), Height: a.mi.DepthHeight(), Data: data}
	}
	if cs.Infra && a.mi.HasInfra() {
		data := a.drv.ReadInfraImage()
		c.Infra = DepthView{Present: len(data) != 0, Width: a.mi.InfraWidth(), Height: a.mi.InfraHeight(), Data: data}
	}
}

// validate drops the modalities whose buffers do not match the session dimensions.
func (a *Assembler) validate() {
	c := &a.capture
	if c.Color.Present && (c.Color.Width != a.mi.ColorWidth() || c.Color.Height != a.mi.ColorHeight()) {
		a.logger.Warnw("dropping color image of unexpected size",
			"width", c.Color.Width, "height", c.Color.Height, "expected_width", a.mi.ColorWidth(), "expected_height", a.mi.ColorHeight())
		c.Color = ColorView{}
	}
	if c.Depth.Present && len(c.Depth.Data) != a.mi.DepthSize() {
		a.logger.Warnw("dropping depth image of unexpected size", "size", len(c.Depth.Data), "expected", a.mi.DepthSize())
		c.Depth = DepthView{}
	}
	if c.Infra.Present && len(c.Infra.Data) != a.mi.InfraSize() {
		a.logger.Warnw("dropping infrared image of unexpected size", "size", len(c.Infra.Data), "expected", a.mi.InfraSize())
		c.Infra = DepthView{}
	}
	if len(c.BodiesIDMap) != 0 && len(c.BodiesIDMap) != a.mi.DepthSize() {
		c.BodiesIDMap = nil
	}
}

func (a *Assembler) convertColor() {
	a.hasRGBA = false
	c := &a.capture
	if !c.Color.Present {
		return
	}
	rgba, err := dcimage.ToRGBA(c.Color.Format, a.rgba, c.Color.Data, c.Color.Width, c.Color.Height)
	a.rgba = rgba
	if err != nil {
		a.logger.Warnw("cannot convert color image", "error", err)
		return
	}
	a.hasRGBA = true
}

func (a *Assembler) resizeColorToDepth() {
	a.depthSizedColor = a.depthSizedColor[:0]
	engine := a.drv.Engine()
	if !a.hasRGBA || !a.capture.Depth.Present || engine == nil {
		return
	}
	c := &a.capture
	a.depthSizedColor = engine.ResizeColorToDepth(a.depthSizedColor, a.rgba, c.Color.Width, c.Color.Height, c.Depth.Data)
}

// filterDepth computes the mask of the tick on a copy of the depth image, then invalidates the
// depth sized color and infrared pixels accordingly.
func (a *Assembler) filterDepth(fs settings.FiltersSettings) {
	c := &a.capture
	a.depth = a.depth[:0]
	a.infra = a.infra[:0]
	a.mask = depthfilter.Result{MeanBiggestZoneID: -1}
	if c.Infra.Present {
		a.infra = append(a.infra, c.Infra.Data...)
	}
	if !c.Depth.Present {
		return
	}
	a.depth = append(a.depth, c.Depth.Data...)
	a.mask = a.filter.Filter(depthfilter.Input{
		Depth:           a.depth,
		DepthSizedColor: a.depthSizedColor,
		Width:           c.Depth.Width,
		Height:          c.Depth.Height,
		RangeMM:         a.mi.DepthRangeMM(),
	}, fs)
	a.filter.ApplyToDepth(a.depth)
	depthfilter.InvalidateColor(a.depthSizedColor, a.depth, c.BodiesIDMap, fs)
	depthfilter.InvalidateInfra(a.infra, a.depth, c.BodiesIDMap, fs)
}

func (a *Assembler) generateCloud(fs settings.FiltersSettings) {
	a.cloud = a.cloud[:0]
	engine := a.drv.Engine()
	if len(a.depth) == 0 || engine == nil {
		return
	}
	a.cloud = engine.DepthToPointCloud(a.depth, a.cloud)
	if len(a.cloud) != len(a.depth) || !fs.FilterDepthWithCloud {
		return
	}
	a.mask = a.filter.FilterCloud(a.depth, a.cloud, fs)
	a.filter.ApplyToDepth(a.depth)
}

func (a *Assembler) hasCloud() bool {
	return len(a.depth) != 0 && len(a.cloud) == len(a.depth) && len(a.mask.Remap) == len(a.depth)
}

func (a *Assembler) useDepthSizedColor(mode dcmode.CloudColorMode) bool {
	return mode == dcmode.CloudColorFromDepthSizedColorImage && len(a.depthSizedColor) == len(a.depth)*4
}

func (a *Assembler) calibrationBlob() []byte {
	cal := a.drv.Calibration()
	if cal == nil {
		return nil
	}
	if cal != a.blobSource {
		blob, err := cal.MarshalBinary()
		if err != nil {
			a.logger.Warnw("cannot serialize calibration", "error", err)
			return nil
		}
		a.blobSource, a.blob = cal, blob
	}
	return slices.Clone(a.blob)
}

func (a *Assembler) localFrame(g settings.GenerationSettings) *LocalFrame {
	c := &a.capture
	lf := &LocalFrame{
		IDCapture:      a.mi.IDCapture(),
		AfterCaptureTS: a.afterCaptureTS,
		Mode:           a.mi.Mode(),
		SessionID:      a.sessionID,
	}
	if g.Calibration {
		lf.Calibration = a.calibrationBlob()
	}
	if g.ColorImage && a.hasRGBA {
		lf.ColorWidth, lf.ColorHeight = c.Color.Width, c.Color.Height
		lf.RGBAColor = slices.Clone(a.rgba)
	}
	if c.Depth.Present {
		lf.DepthWidth, lf.DepthHeight = c.Depth.Width, c.Depth.Height
		if g.DepthSizedColorImage && len(a.depthSizedColor) != 0 {
			lf.DepthSizedColor = slices.Clone(a.depthSizedColor)
		}
		if g.Depth {
			lf.Depth = slices.Clone(a.depth)
		}
		if g.DepthImage {
			lf.DepthImage = dcimage.ColorizeDepth(nil, a.depth, a.mi.DepthRangeMM())
		}
	}
	if c.Infra.Present {
		if g.Infra {
			lf.Infra = slices.Clone(a.infra)
		}
		if g.InfraImage {
			lf.InfraImage = dcimage.ColorizeInfra(nil, a.infra)
		}
	}
	if g.BodyIDMapImage && len(c.BodiesIDMap) != 0 {
		lf.BodiesIDMap = slices.Clone(c.BodiesIDMap)
	}
	if g.BodyTracking {
		lf.Bodies = slices.Clone(c.Bodies)
	}
	if g.IMU && c.HasIMU {
		imu := c.IMU
		lf.IMU = &imu
	}
	if g.Audio && len(c.Audio.Samples) != 0 {
		lf.Audio = Audio{Channels: c.Audio.Channels, Samples: slices.Clone(c.Audio.Samples)}
	}
	if g.Cloud && a.hasCloud() {
		a.fillCloud(&lf.Cloud, g.CloudColorMode)
	}
	lf.ReceivedTS = a.clock.Now()
	return lf
}

// fillCloud compacts the valid points of the tick, converted to meters, with their colors and
// normals.
func (a *Assembler) fillCloud(cloud *Cloud, mode dcmode.CloudColorMode) {
	n := a.mask.ValidDepthValues
	cloud.Vertices = make([]r3.Vector, n)
	cloud.Colors = make([]r3.Vector, n)
	cloud.Normals = make([]r3.Vector, n)
	if n == 0 {
		return
	}
	fromColor := a.useDepthSizedColor(mode)
	rng := a.mi.DepthRangeMM()
	remap := a.mask.Remap
	utils.ParallelForEachIndex(len(remap), func(id int) {
		vid := remap[id]
		if vid < 0 {
			return
		}
		cloud.Vertices[vid] = a.cloud[id].Vector().Mul(0.001)
		if fromColor {
			px := a.depthSizedColor[id*4 : id*4+3]
			cloud.Colors[vid] = r3.Vector{X: float64(px[0]) / 255, Y: float64(px[1]) / 255, Z: float64(px[2]) / 255}
			return
		}
		r, g, b := dcimage.DepthGradient(a.depth[id], rng)
		cloud.Colors[vid] = r3.Vector{X: r, Y: g, Z: b}
	})
	computeNormals(cloud.Normals, cloud.Vertices, a.filter.Indices(), remap, a.normalsConn)
}

// packedCloud returns the valid points of the tick in vertex order, with 3 bytes colors.
func (a *Assembler) packedCloud(mode dcmode.CloudColorMode) ([]transform.Point3, []byte) {
	n := a.mask.ValidDepthValues
	points := make([]transform.Point3, n)
	rgb := make([]byte, n*3)
	fromColor := a.useDepthSizedColor(mode)
	rng := a.mi.DepthRangeMM()
	for id, vid := range a.mask.Remap {
		if vid < 0 {
			continue
		}
		points[vid] = a.cloud[id]
		o := int(vid) * 3
		if fromColor {
			copy(rgb[o:o+3], a.depthSizedColor[id*4:id*4+3])
			continue
		}
		r, g, b := dcimage.DepthGradient(a.depth[id], rng)
		rgb[o], rgb[o+1], rgb[o+2] = uint8(r*255), uint8(g*255), uint8(b*255)
	}
	return points, rgb
}

func (a *Assembler) compressedFrame(cs settings.CompressionSettings) *CompressedFrame {
	c := &a.capture
	comp := a.compressor
	if comp == nil {
		comp = codec.NewDefault(cs)
	}
	cf := &CompressedFrame{
		IDCapture:          a.mi.IDCapture(),
		AfterCaptureTS:     a.afterCaptureTS,
		Mode:               a.mi.Mode(),
		DeviceID:           a.drv.SerialNumber(),
		SessionID:          a.sessionID,
		ValidVerticesCount: a.mask.ValidDepthValues,
		Calibration:        a.calibrationBlob(),
	}
	encode := func(name string, dst *codec.EncodedImage, f func() (codec.EncodedImage, error)) {
		e, err := f()
		if err != nil {
			a.logger.Warnw("cannot compress "+name, "error", err)
			return
		}
		*dst = e
	}
	if cs.Color && a.hasRGBA {
		encode("color", &cf.Color, func() (codec.EncodedImage, error) {
			return comp.EncodeColor(a.rgba, c.Color.Width, c.Color.Height)
		})
	}
	if cs.DepthSizedColor && len(a.depthSizedColor) != 0 {
		encode("depth sized color", &cf.DepthSizedColor, func() (codec.EncodedImage, error) {
			return comp.EncodeColor(a.depthSizedColor, c.Depth.Width, c.Depth.Height)
		})
	}
	if cs.Depth && len(a.depth) != 0 {
		encode("depth", &cf.Depth, func() (codec.EncodedImage, error) {
			return comp.EncodeUint16(a.depth, c.Depth.Width, c.Depth.Height)
		})
	}
	if cs.Infra && len(a.infra) != 0 {
		encode("infrared", &cf.Infra, func() (codec.EncodedImage, error) {
			return comp.EncodeUint16(a.infra, c.Infra.Width, c.Infra.Height)
		})
	}
	if cs.BodyIDMap && len(c.BodiesIDMap) != 0 {
		encode("bodies id map", &cf.BodiesIDMap, func() (codec.EncodedImage, error) {
			return comp.EncodeGray(c.BodiesIDMap, c.Depth.Width, c.Depth.Height)
		})
	}
	if cs.Cloud && a.hasCloud() && a.mask.ValidDepthValues > 0 {
		points, rgb := a.packedCloud(cs.CloudColorMode)
		encode("cloud", &cf.Cloud, func() (codec.EncodedImage, error) {
			return comp.EncodeCloud(points, rgb)
		})
	}
	if cs.BodyTracking {
		cf.Bodies = slices.Clone(c.Bodies)
	}
	if cs.IMU && c.HasIMU {
		imu := c.IMU
		cf.IMU = &imu
	}
	if cs.Audio && len(c.Audio.Samples) != 0 {
		cf.Audio = Audio{Channels: c.Audio.Channels, Samples: slices.Clone(c.Audio.Samples)}
	}
	return cf
}
