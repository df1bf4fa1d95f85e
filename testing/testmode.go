// Package testing switches the process into test mode when blank-imported
// from a _test.go file, so entrypoints and config loading skip live side
// effects.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PHARMASIGHT_TEST_MODE", "1")
		if os.Getenv("UPSTREAM_API_KEY") == "" {
			_ = os.Setenv("UPSTREAM_API_KEY", "test-key")
		}
		_ = os.Setenv("WORKER_METRICS_ADDR", "")
	})
}

func init() {
	ensureTestMode()
}
