// Package env reads the environment variables that tune impactmap at runtime.
package env

import (
	"os"
	"strconv"
	"time"
)

// Dev serves the editor page assets from disk instead of the embedded copy.
func Dev() bool {
	return os.Getenv("DEV_MODE") != ""
}

func Debug() bool {
	return os.Getenv("DEBUG") != ""
}

// Timeout returns $IMPACTMAP_TIMEOUT in seconds if set.
func Timeout() (time.Duration, bool) {
	if s := os.Getenv("IMPACTMAP_TIMEOUT"); s != "" {
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return time.Duration(i) * time.Second, true
		}
	}
	return -1, false
}
