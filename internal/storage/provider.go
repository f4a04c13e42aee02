// Package storage defines the store-root file-system abstraction.
package storage

// Provider is the interface for file operations under the store root.
// All paths are relative to the root; implementations must reject paths
// that escape it.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// RemoveAll recursively removes the directory subtree at path.
	RemoveAll(path string) error
	// Exists reports whether a file or directory exists at path.
	Exists(path string) (bool, error)
}
