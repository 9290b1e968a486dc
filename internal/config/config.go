// Package config captures the fixed and environment-derived knobs the
// scheduler and CLI need. Inspect it with `razel env`.
package config

import "os"

// BinDir is the name of the directory (relative to the current directory)
// that output files are rooted under. Override with $RAZEL_BIN_DIR.
var BinDir = binDir()

func binDir() string {
	if v := os.Getenv("RAZEL_BIN_DIR"); v != "" {
		return v
	}
	return "bin"
}

// CacheDir is where the local action cache and CAS store their state.
// Override with $RAZEL_CACHE_DIR.
var CacheDir = cacheDir()

func cacheDir() string {
	if v := os.Getenv("RAZEL_CACHE_DIR"); v != "" {
		return v
	}
	home, err := os.UserCacheDir()
	if err != nil {
		return ".razel-cache"
	}
	return home + "/razel"
}
