package app

import (
	"os"
	"sync/atomic"
)

const testModeEnv = "RECEIVING_TEST_MODE"

// testMode caches the env lookup: 0 unknown, 1 off, 2 on.
var testMode atomic.Int32

// InTestMode reports whether binaries run without PostgreSQL and Redis.
func InTestMode() bool {
	if testMode.Load() == 0 {
		RefreshTestMode()
	}
	return testMode.Load() == 2
}

// RefreshTestMode re-reads the environment after it changed.
func RefreshTestMode() {
	if os.Getenv(testModeEnv) == "1" {
		testMode.Store(2)
		return
	}
	testMode.Store(1)
}
