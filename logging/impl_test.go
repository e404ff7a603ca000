package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestConsoleAppender(t *testing.T) {
	var buf bytes.Buffer
	logger := NewBlankLogger("cam")
	logger.AddAppender(NewWriterAppender(&buf))

	logger.Infof("opened device %d", 2)
	output := buf.String()
	test.That(t, output, test.ShouldContainSubstring, "INFO")
	test.That(t, output, test.ShouldContainSubstring, "cam")
	test.That(t, output, test.ShouldContainSubstring, "opened device 2")
	test.That(t, output, test.ShouldContainSubstring, "logging/impl_test.go")

	buf.Reset()
	logger.Warnw("sync cable missing", "requested", "main")
	test.That(t, buf.String(), test.ShouldContainSubstring, `"requested": "main"`)
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewBlankLogger("lvl")
	logger.AddAppender(NewWriterAppender(&buf))
	logger.SetLevel(WARN)

	logger.Debug("hidden")
	logger.Info("hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Error("shown")
	test.That(t, strings.Count(buf.String(), "\n"), test.ShouldEqual, 1)

	sub := logger.Sublogger("azure")
	test.That(t, sub.GetLevel(), test.ShouldEqual, WARN)
	sub.Warn("from sub")
	test.That(t, buf.String(), test.ShouldContainSubstring, "lvl.azure")
}

func TestLevelParsing(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "Warn", "warning", "error"} {
		_, err := LevelFromString(name)
		test.That(t, err, test.ShouldBeNil)
	}
	_, err := LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)

	var lvl Level
	test.That(t, lvl.UnmarshalJSON([]byte(`"warn"`)), test.ShouldBeNil)
	test.That(t, lvl, test.ShouldEqual, WARN)
	out, err := lvl.MarshalJSON()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"warn"`)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Warnf("hdr cannot be changed while reading")
	logger.Infow("started", "mode", 3)

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	test.That(t, logs.FilterLevelExact(zapcore.WarnLevel).Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("started").All()[0].ContextMap()["mode"], test.ShouldEqual, int64(3))
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcgrab.log")
	appender, closer := NewFileAppender(path, 1, 1)
	logger := NewBlankLogger("file")
	logger.AddAppender(appender)
	logger.Infow("capture done", "frames", 2)
	test.That(t, closer.Close(), test.ShouldBeNil)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "capture done")
	test.That(t, string(data), test.ShouldContainSubstring, `"frames": 2`)
}
