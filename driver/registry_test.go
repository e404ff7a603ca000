package driver_test

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/driver/fake"
	"go.viam.com/depthcam/logging"
)

func TestRegistry(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	scene := fake.NewScene()
	r := driver.NewRegistry()

	test.That(t, r.Register(dcmode.Kinect2, driver.Registration{}), test.ShouldNotBeNil)
	test.That(t, r.Register(dcmode.Kinect2, driver.Registration{
		Constructor: func(logger logging.Logger) (driver.Driver, error) {
			return fake.NewDriver(dcmode.Kinect2, scene, nil, logger), nil
		},
		Enumerator: func() ([]string, error) { return []string{"k2-a", "k2-b"}, nil },
	}), test.ShouldBeNil)
	test.That(t, r.Register(dcmode.AzureKinect, driver.Registration{
		Constructor: func(logger logging.Logger) (driver.Driver, error) {
			return nil, errors.New("no k4a library")
		},
		Enumerator: func() ([]string, error) { return nil, errors.New("no k4a library") },
	}), test.ShouldBeNil)

	test.That(t, r.Types(), test.ShouldResemble, []dcmode.DeviceType{dcmode.AzureKinect, dcmode.Kinect2})

	d, err := r.New(dcmode.Kinect2, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.DeviceType(), test.ShouldEqual, dcmode.Kinect2)

	_, err = r.New(dcmode.AzureKinect, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = r.New(dcmode.FemtoBolt, logger)
	test.That(t, err, test.ShouldNotBeNil)

	devices := r.ListDevices(logger)
	test.That(t, devices, test.ShouldResemble, []driver.DeviceInfo{
		{Type: dcmode.Kinect2, Index: 0, Serial: "k2-a"},
		{Type: dcmode.Kinect2, Index: 1, Serial: "k2-b"},
	})
	test.That(t, logs.FilterMessageSnippet("cannot enumerate devices").Len(), test.ShouldEqual, 1)
}
