package blob

import (
	"context"
	"fmt"
)

// Config names the archive backend and its location.
type Config struct {
	Driver string
	Root   string // directory root when driver=fs
	S3     S3Config
}

// Open selects a Store implementation from Config. An empty driver
// falls back to the filesystem backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}
