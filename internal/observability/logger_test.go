// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/cartwright/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// initToBuffer wires the global logger to an in-memory writer.
func initToBuffer(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitialize(t *testing.T) {
	t.Run("should colorize console levels", func(t *testing.T) {
		buf := initToBuffer(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		})

		GetLogger().Info("adding product to cart")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "adding product to cart")
		assert.Contains(t, output, "\x1b[32mINFO\x1b[0m")
		assert.Contains(t, output, "TestService.")
	})

	t.Run("should emit structured json", func(t *testing.T) {
		buf := initToBuffer(t, config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		})

		GetLogger().Warn("variant mismatch", zap.String("storefront", "dutchie"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "variant mismatch", entry["msg"])
		assert.Equal(t, "dutchie", entry["storefront"])
	})

	t.Run("should respect the configured level", func(t *testing.T) {
		buf := initToBuffer(t, config.LoggerConfig{Level: "warn", Format: "json"})

		GetLogger().Info("suppressed")
		GetLogger().Error("kept")
		Sync()

		assert.NotContains(t, buf.String(), "suppressed")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("should fall back to info on an unknown level", func(t *testing.T) {
		buf := initToBuffer(t, config.LoggerConfig{Level: "verbose", Format: "json"})

		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		Sync()

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("should also write to a rotated log file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "cartwright.log")
		initToBuffer(t, config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: logFile,
			MaxSize: 1,
		})

		GetLogger().Error("this should go to the file")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "this should go to the file")
		// The file core is always JSON.
		assert.True(t, strings.HasPrefix(strings.TrimSpace(string(content)), "{"))
	})

	t.Run("should only initialize once", func(t *testing.T) {
		buf := initToBuffer(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"})
		first := GetLogger()

		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		Sync()
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		initToBuffer(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}

func TestColorize(t *testing.T) {
	t.Run("should wrap known colors in an ANSI sequence", func(t *testing.T) {
		assert.Equal(t, "\x1b[31mERROR\x1b[0m", colorize("Red", "ERROR"))
	})

	t.Run("should leave unknown or empty colors plain", func(t *testing.T) {
		assert.Equal(t, "WARN", colorize("", "WARN"))
		assert.Equal(t, "WARN", colorize("chartreuse", "WARN"))
	})
}

func TestCartFields(t *testing.T) {
	t.Run("should scope a logger to a storefront cart", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		cartID := uuid.New()

		ForCart(zap.New(core), "dutchie", cartID).Info("Product added to cart.", Operation("add_product"))

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "dutchie", fields[KeyStorefront])
		assert.Equal(t, cartID.String(), fields[KeyCartID])
		assert.Equal(t, "add_product", fields[KeyOperation])
	})

	t.Run("should omit the cart outside any cart", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		ForCart(zap.New(core), "iheartjane", uuid.Nil).Debug("Listed variants.")

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "iheartjane", fields[KeyStorefront])
		assert.NotContains(t, fields, KeyCartID)
	})

	t.Run("should write cart fields into the json log", func(t *testing.T) {
		buf := initToBuffer(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "cartwright"})
		cartID := uuid.New()

		ForCart(GetLogger(), "leafly", cartID).Info("Order submitted.")
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "leafly", entry[KeyStorefront])
		assert.Equal(t, cartID.String(), entry[KeyCartID])
	})
}

func TestIgnorableSyncError(t *testing.T) {
	t.Run("should drop terminal sync failures", func(t *testing.T) {
		assert.True(t, ignorableSyncError(errors.New("sync /dev/stdout: invalid argument")))
		assert.True(t, ignorableSyncError(errors.New("sync /dev/stderr: inappropriate ioctl for device")))
	})

	t.Run("should keep real failures", func(t *testing.T) {
		assert.False(t, ignorableSyncError(errors.New("write /var/log/cartwright.log: no space left on device")))
	})
}
