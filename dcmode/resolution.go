package dcmode

// ColorResolution is a color sensor resolution.
type ColorResolution int8

// Color resolutions.
const (
	ColorOff ColorResolution = iota
	R720P
	R960P
	R1080P
	R1440P
	R1536P
	R2160P
	R3072P
)

var colorResolutions = map[ColorResolution][2]int{
	ColorOff: {0, 0},
	R720P:    {1280, 720},
	R960P:    {1280, 960},
	R1080P:   {1920, 1080},
	R1440P:   {2560, 1440},
	R1536P:   {2048, 1536},
	R2160P:   {3840, 2160},
	R3072P:   {4096, 3072},
}

// Width in pixels.
func (r ColorResolution) Width() int {
	return colorResolutions[r][0]
}

// Height in pixels.
func (r ColorResolution) Height() int {
	return colorResolutions[r][1]
}

// DepthResolution is a depth sensor resolution.
type DepthResolution int8

// Depth resolutions. K2 is the Kinect2 class 512x424 sensor, the others are the k4a depth modes
// also exposed by Femto devices.
//
//nolint:revive,stylecheck
const (
	DepthOff DepthResolution = iota
	K2_512x424
	K4A_320x288
	K4A_640x576
	K4A_512x512
	K4A_1024x1024
)

// DepthResolutionInfo describes a depth resolution.
type DepthResolutionInfo struct {
	Width, Height int
	// metric range in meters
	MinRange, MaxRange float64
	MaxFPS             Framerate
	FovH, FovV         int
}

var depthResolutions = map[DepthResolution]DepthResolutionInfo{
	DepthOff:      {0, 0, 0, 0, UndefinedFramerate, 0, 0},
	K2_512x424:    {512, 424, 0.5, 4.5, F30, 70, 60},
	K4A_320x288:   {320, 288, 0.5, 5.46, F30, 75, 65},
	K4A_640x576:   {640, 576, 0.5, 3.86, F30, 75, 65},
	K4A_512x512:   {512, 512, 0.25, 2.88, F30, 120, 120},
	K4A_1024x1024: {1024, 1024, 0.25, 2.21, F15, 120, 120},
}

// Info returns the resolution description.
func (r DepthResolution) Info() DepthResolutionInfo {
	return depthResolutions[r]
}

// Width in pixels.
func (r DepthResolution) Width() int {
	return depthResolutions[r].Width
}

// Height in pixels.
func (r DepthResolution) Height() int {
	return depthResolutions[r].Height
}
