//go:build !coolreader_debug

package node

func assertFailed(msg string) {}
