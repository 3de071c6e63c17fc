//go:build !windows

package config

import "os"

func socketPath(tempDir, key string) string {
	return prefixPath(tempDir, key) + ".sock"
}

func removeSocket(path string) error {
	return os.Remove(path)
}
