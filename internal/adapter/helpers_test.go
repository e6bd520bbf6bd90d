// internal/adapter/helpers_test.go
package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cartwright/internal/config"
	"github.com/xkilldash9x/cartwright/internal/errs"
	"github.com/xkilldash9x/cartwright/internal/selectors"
)

// testTimeouts keeps every wait short enough that absent elements cost
// milliseconds.
func testTimeouts() config.TimeoutConfig {
	return config.TimeoutConfig{
		Navigation:    time.Second,
		Action:        300 * time.Millisecond,
		Modal:         20 * time.Millisecond,
		AgeGate:       20 * time.Millisecond,
		BlockingModal: 20 * time.Millisecond,
		StockCheck:    50 * time.Millisecond,
		CartContainer: 300 * time.Millisecond,
		SuccessWait:   300 * time.Millisecond,
		Captcha:       100 * time.Millisecond,
		Settle:        time.Millisecond,
		PollInterval:  5 * time.Millisecond,
	}
}

// group builds a selector group of single expressions.
func group(pairs map[string]string) selectors.Group {
	g := make(selectors.Group, len(pairs))
	for k, v := range pairs {
		g[k] = selectors.Single(v)
	}
	return g
}

func named(pairs ...string) selectors.Query {
	var q selectors.Query
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Names = append(q.Names, pairs[i])
		q.Exprs = append(q.Exprs, pairs[i+1])
	}
	return q
}

func newTestAdapter(t *testing.T, storefront string, file selectors.File, uploadDir string) Adapter {
	t.Helper()
	set, err := selectors.New(file)
	require.NoError(t, err)
	a, err := NewFactory(set, testTimeouts(), uploadDir, zaptest.NewLogger(t)).ForStorefront(storefront)
	require.NoError(t, err)
	return a
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// requireReason asserts err carries the kind and reason.
func requireReason(t *testing.T, err error, kind errs.Kind, reason errs.Reason) *errs.E {
	t.Helper()
	require.Error(t, err)
	e := errs.From(err)
	require.NotNil(t, e, "expected an error envelope, got %v", err)
	require.Equal(t, kind, e.Kind, e.Message)
	require.Equal(t, reason, e.Reason, e.Message)
	return e
}
