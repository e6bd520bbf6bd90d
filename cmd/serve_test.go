// File: cmd/serve_test.go
package cmd

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cartwright/internal/config"
	"github.com/xkilldash9x/cartwright/internal/mocks"
	"github.com/xkilldash9x/cartwright/internal/service"
)

type stubFactory struct {
	components *service.Components
	err        error
}

func (f stubFactory) Create(context.Context, config.Interface, *zap.Logger) (*service.Components, error) {
	return f.components, f.err
}

func TestServeHTTP(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("should serve until the context is canceled", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "ok")
		})
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- serveHTTP(ctx, ln, config.ServerConfig{ShutdownTimeout: time.Second}, handler, zaptest.NewLogger(t))
		}()

		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
		resp, err := client.Get("http://" + ln.Addr().String() + "/")
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, "ok", string(body))

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})
}

func TestRunServe(t *testing.T) {
	t.Run("should fail when components cannot be built", func(t *testing.T) {
		cfg := new(mocks.MockConfig)
		err := runServe(context.Background(), cfg, stubFactory{err: errors.New("selectors missing")}, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize components: selectors missing")
	})

	t.Run("should fail on an unusable listen address", func(t *testing.T) {
		cfg := new(mocks.MockConfig)
		cfg.On("Server").Return(config.ServerConfig{Addr: "not-an-address"})

		err := runServe(context.Background(), cfg, stubFactory{components: &service.Components{}}, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to listen on not-an-address")
		cfg.AssertExpectations(t)
	})
}
