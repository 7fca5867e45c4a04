//go:build !postgres && !sqlite

package model

import "fmt"

// InitDatabase requires a build tag selecting the storage backend.
func InitDatabase(_ *Config) (*Store, error) {
	return nil, fmt.Errorf("no build tags specified, use either -tags sqlite or -tags postgres")
}
