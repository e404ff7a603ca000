package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/bep/debounce"
	"github.com/docker/go-units"
	"github.com/fsnotify/fsnotify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/device"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
)

const (
	logFileMaxSizeMB  = 64
	logFileMaxBackups = 3
	// writes to the filters file closer than this are applied once
	filtersDebounce = 100 * time.Millisecond
)

var logFile io.Closer

func setupLogging(c *cli.Context) error {
	level, err := logging.LevelFromString(c.String(logLevelFlag))
	if err != nil {
		return err
	}
	if c.Bool(debugFlag) {
		level = logging.DEBUG
	}
	logger := logging.NewLogger("dcgrab")
	logger.SetLevel(level)
	if path := c.String(logFileFlag); path != "" {
		appender, closer := logging.NewFileAppender(path, logFileMaxSizeMB, logFileMaxBackups)
		logger.AddAppender(appender)
		logFile = closer
	}
	logging.ReplaceGlobal(logger)
	return nil
}

func closeLogFile(c *cli.Context) error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ListAction prints the simulated devices of every family.
func ListAction(c *cli.Context) error {
	reg, err := newSimulatedRegistry()
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Type", "Index", "Serial"})
	for _, info := range reg.ListDevices(logging.Global()) {
		t.AppendRow(table.Row{info.Type.String(), strconv.Itoa(int(info.Index)), info.Serial})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

// SchemaAction prints the JSON schema of the device settings.
func SchemaAction(c *cli.Context) error {
	data, err := json.MarshalIndent(settings.Schema(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot serialize schema")
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

// CaptureAction runs a device until the requested number of frames is written.
func CaptureAction(c *cli.Context) error {
	logger := logging.Global()
	dt, err := parseDeviceType(c.String(deviceFlag))
	if err != nil {
		return err
	}
	ds, err := loadSettings(c, dt)
	if err != nil {
		return err
	}
	nFrames := c.Int(framesFlag)
	if nFrames <= 0 {
		return errors.Errorf("--%s must be positive", framesFlag)
	}
	outDir := c.String(outFlag)
	w, err := newFrameWriter(outDir, c.String(imageFlag), c.Bool(binaryFlag), nFrames, dt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return errors.Wrapf(err, "cannot create %s", outDir)
	}

	reg, err := newSimulatedRegistry()
	if err != nil {
		return err
	}
	drv, err := reg.New(dt, logger.Sublogger(dt.String()))
	if err != nil {
		return err
	}
	d := device.New(drv, logger.Sublogger("device"), device.DefaultOptions())
	ctx := c.Context
	if err := d.Open(ctx, uint32(c.Uint(indexFlag))); err != nil {
		return multierr.Combine(err, d.Close(context.Background()))
	}
	err = captureFrames(c, d, ds, w)
	return multierr.Combine(err, d.Close(context.Background()))
}

func loadSettings(c *cli.Context, dt dcmode.DeviceType) (settings.DeviceSettings, error) {
	ds := settings.DefaultDeviceSettings(dt)
	if path := c.String(settingsFlag); path != "" {
		//nolint:gosec
		data, err := os.ReadFile(path)
		if err != nil {
			return ds, errors.Wrapf(err, "cannot read %s", path)
		}
		if err := settings.FromString(string(data), &ds); err != nil {
			return ds, errors.Wrapf(err, "in %s", path)
		}
	}
	if path := c.String(filtersFlag); path != "" {
		fs, err := readFilters(path, ds.Filters)
		if err != nil {
			return ds, err
		}
		ds.Filters = fs
	}
	if err := settings.ApplyOverrides(&ds, c.StringSlice(setFlag)); err != nil {
		return ds, err
	}
	ds.Config.TypeDevice = dt
	return ds, nil
}

// readFilters reads a filters file. Keys missing from the file keep the values of base.
func readFilters(path string, base settings.FiltersSettings) (settings.FiltersSettings, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return base, errors.Wrapf(err, "cannot read %s", path)
	}
	fs := base
	if err := settings.FromString(string(data), &fs); err != nil {
		return base, errors.Wrapf(err, "in %s", path)
	}
	return fs, nil
}

func captureFrames(c *cli.Context, d *device.Device, ds settings.DeviceSettings, w *frameWriter) error {
	ctx := c.Context
	logger := logging.Global()
	if err := d.Configure(ctx, ds); err != nil {
		return err
	}
	d.OnLocalFrame(w.write)

	if path := c.String(filtersFlag); path != "" && c.Bool(watchFlag) {
		watcher, err := watchFilters(path, d, logger)
		if err != nil {
			return err
		}
		defer watcher.Stop()
	}

	start := time.Now()
	if err := d.StartReading(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-w.done:
	}
	d.StopReading()

	if err := w.finish(); err != nil {
		return err
	}
	stats := d.Stats()
	logger.Infow("capture done",
		"frames", w.written,
		"dir", w.dir,
		"size", units.HumanSize(float64(w.bytes)),
		"duration", time.Since(start).Round(time.Millisecond),
		"timeouts", stats.Timeouts,
		"failures", stats.Failures)
	return ctx.Err()
}

// watchFilters applies the filters file to the device each time it is written.
func watchFilters(path string, d *device.Device, logger logging.Logger) (*goutils.StoppableWorkers, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "cannot watch filters")
	}
	if err := watcher.Add(path); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot watch %s", path), watcher.Close())
	}
	reload := func() {
		fs, err := readFilters(path, d.Settings().Filters)
		if err == nil {
			err = d.SetFilters(fs)
		}
		if err != nil {
			logger.Warnw("filters not reloaded", "path", path, "error", err)
			return
		}
		logger.Infow("filters reloaded", "path", path)
	}
	debounced := debounce.New(filtersDebounce)
	return goutils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnw("cannot close filters watcher", "error", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-watcher.Errors:
				logger.Warnw("filters watcher failed", "error", err)
			case event := <-watcher.Events:
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					debounced(reload)
				}
			}
		}
	}), nil
}
