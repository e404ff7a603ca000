package cli

import (
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/depthcam/audio"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/driver/azure"
	"go.viam.com/depthcam/driver/fake"
	"go.viam.com/depthcam/driver/orbbec"
	"go.viam.com/depthcam/logging"
)

// Serial numbers of the simulated devices.
var (
	azureSerials   = []string{"SIM-AK-000001", "SIM-AK-000002"}
	boltSerials    = []string{"SIM-FB-000001"}
	megaUSBSerials = []string{"SIM-FM-000001"}
	kinect2Serial  = "SIM-Kinect2"
)

// newSimulatedRegistry registers every device family against simulated SDKs filming the same
// scene.
func newSimulatedRegistry() (*driver.Registry, error) {
	scene := fake.NewScene()
	k4a := fake.NewK4A(scene, azureSerials...)
	mics := fake.NewAudioManager(azureSerials...)
	bolt := fake.NewOBSensor(scene, dcmode.FemtoBolt, boltSerials...)
	megaUSB := fake.NewOBSensor(scene, dcmode.FemtoMegaUSB, megaUSBSerials...)

	reg := driver.NewRegistry()
	err := reg.Register(dcmode.AzureKinect, driver.Registration{
		Constructor: func(logger logging.Logger) (driver.Driver, error) {
			return azure.New(k4a, mics, &fake.TrackerFactory{}, logger), nil
		},
		Enumerator: func() ([]string, error) { return azure.Enumerate(k4a) },
	})
	if err != nil {
		return nil, err
	}
	for dt, sdk := range map[dcmode.DeviceType]*fake.OBSensor{dcmode.FemtoBolt: bolt, dcmode.FemtoMegaUSB: megaUSB} {
		dt, sdk := dt, sdk
		err := reg.Register(dt, driver.Registration{
			Constructor: func(logger logging.Logger) (driver.Driver, error) {
				return orbbec.New(sdk, dt, &fake.TrackerFactory{}, &fake.CaptureFactory{}, logger)
			},
			Enumerator: func() ([]string, error) { return orbbec.Enumerate(sdk, dt) },
		})
		if err != nil {
			return nil, err
		}
	}
	err = reg.Register(dcmode.Kinect2, driver.Registration{
		Constructor: func(logger logging.Logger) (driver.Driver, error) {
			return fake.NewDriver(dcmode.Kinect2, scene, nil, logger), nil
		},
		Enumerator: func() ([]string, error) { return []string{kinect2Serial}, nil },
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func parseDeviceType(name string) (dcmode.DeviceType, error) {
	switch strings.ToLower(name) {
	case "azure":
		return dcmode.AzureKinect, nil
	case "orbbec", "bolt":
		return dcmode.FemtoBolt, nil
	case "mega":
		return dcmode.FemtoMegaUSB, nil
	}
	var dt dcmode.DeviceType
	if err := dt.UnmarshalText([]byte(name)); err != nil {
		return dcmode.UndefinedDevice, errors.Wrap(err, "invalid --device")
	}
	return dt, nil
}

// sampleRate returns the microphone sample rate of a device family.
func sampleRate(dt dcmode.DeviceType) int {
	if dt == dcmode.Kinect2 {
		return 16000
	}
	return audio.AzureSampleRate
}
