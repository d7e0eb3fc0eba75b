package api_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in the api package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// HTTP connection pool goroutines persist across tests
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
		// genkit.Init (called by testutil.NewMockAI) registers a signal
		// handler via signal.NotifyContext and discards the stop func
		goleak.IgnoreTopFunction("os/signal.NotifyContext.func1"),
	)
}
