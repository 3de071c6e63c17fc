//go:build windows

package config

// socketPath names a pipe in the local pipe namespace. Pipes are not files, so
// the temp dir does not appear in the name.
func socketPath(_, key string) string {
	return `\\.\pipe\dude-wheres-my-module-` + key
}

// removeSocket is a no-op: the pipe goes away with its server.
func removeSocket(string) error {
	return nil
}
