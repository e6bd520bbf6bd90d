// internal/browser/manager_test.go
package browser

import (
	"runtime"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/cartwright/internal/config"
)

func TestLaunchFlags(t *testing.T) {
	t.Run("should drop the automation flag and hide the blink automation feature", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{Headless: true})
		assert.Equal(t, false, flags["enable-automation"])
		assert.Equal(t, "AutomationControlled", flags["disable-blink-features"])
		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, true, flags["disable-gpu"])
	})

	t.Run("should keep the gpu when headed", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{Headless: false})
		assert.Equal(t, false, flags["headless"])
		assert.Equal(t, false, flags["disable-gpu"])
	})

	t.Run("should honour IgnoreTLSErrors", func(t *testing.T) {
		assert.Equal(t, true, launchFlags(config.BrowserConfig{IgnoreTLSErrors: true})["ignore-certificate-errors"])
		assert.Equal(t, false, launchFlags(config.BrowserConfig{})["ignore-certificate-errors"])
	})

	t.Run("should parse custom args with and without values", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{
			Args: []string{"--custom-arg1", "--lang=en-US", "proxy-server=http://127.0.0.1:8080", "--"},
		})
		assert.Equal(t, true, flags["custom-arg1"])
		assert.Equal(t, "en-US", flags["lang"])
		assert.Equal(t, "http://127.0.0.1:8080", flags["proxy-server"])
		_, empty := flags[""]
		assert.False(t, empty)
	})

	t.Run("should let custom args override the defaults", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{Args: []string{"--disable-extensions=false"}})
		assert.Equal(t, "false", flags["disable-extensions"])
	})

	t.Run("should add container flags on linux", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{})
		_, ok := flags["no-sandbox"]
		assert.Equal(t, runtime.GOOS == "linux", ok)
	})
}

func TestAllocatorOptions(t *testing.T) {
	t.Run("should layer flags over the chromedp defaults", func(t *testing.T) {
		cfg := config.BrowserConfig{Headless: true}
		opts := AllocatorOptions(cfg)
		// defaults + one option per flag + user agent
		assert.Len(t, opts, len(chromedp.DefaultExecAllocatorOptions)+len(launchFlags(cfg))+1)
	})

	t.Run("should add a window size when the viewport is set", func(t *testing.T) {
		cfg := config.BrowserConfig{Viewport: config.Viewport{Width: 1920, Height: 1080}}
		opts := AllocatorOptions(cfg)
		assert.Len(t, opts, len(chromedp.DefaultExecAllocatorOptions)+len(launchFlags(cfg))+2)
	})
}
