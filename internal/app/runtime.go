package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

const testModeEnv = "PHARMASIGHT_TEST_MODE"

// testMode is 0 until first read, then 1 (off) or 2 (on).
var testMode atomic.Int32

func readTestMode() int32 {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	if on {
		return 2
	}
	return 1
}

// InTestMode reports whether the binaries should return before dialling
// Redis or the upstream API.
func InTestMode() bool {
	if testMode.Load() == 0 {
		testMode.CompareAndSwap(0, readTestMode())
	}
	return testMode.Load() == 2
}

// RefreshTestMode re-reads PHARMASIGHT_TEST_MODE.
func RefreshTestMode() {
	testMode.Store(readTestMode())
}
