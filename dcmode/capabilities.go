package dcmode

// Capabilities lists what a device family can stream.
type Capabilities struct {
	Audio        bool
	Infra        bool
	BodyTracking bool
	BodiesIDMap  bool
	IMU          bool
	DefaultMode  Mode
}

var deviceCapabilities = map[DeviceType]Capabilities{
	AzureKinect: {
		Audio: true, Infra: true, BodyTracking: true, BodiesIDMap: true, IMU: true,
		DefaultMode: AK_C1280x720_DI640x576_NV12_F30,
	},
	FemtoBolt: {
		Infra: true, BodyTracking: true, BodiesIDMap: true, IMU: true,
		DefaultMode: FB_C1280x720_DI640x576_NV12_F30,
	},
	FemtoMegaEthernet: {
		Infra: true, BodyTracking: true, BodiesIDMap: true, IMU: true,
		DefaultMode: FME_C1280x720_DI640x576_MJPG_F30,
	},
	FemtoMegaUSB: {
		Infra: true, BodyTracking: true, BodiesIDMap: true, IMU: true,
		DefaultMode: FMU_C1280x720_DI640x576_MJPG_F30,
	},
	Kinect2: {
		Audio: true, Infra: true,
		DefaultMode: K2_C1920x1080_DI512x424_BGRA_F30,
	},
	Recording: {
		Audio: true, Infra: true, IMU: true,
		DefaultMode: InvalidMode,
	},
}

// DeviceCapabilities returns the capabilities of a device family. Unknown families have none.
func DeviceCapabilities(dt DeviceType) Capabilities {
	return deviceCapabilities[dt]
}
