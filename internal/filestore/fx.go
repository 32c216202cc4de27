package filestore

import (
	"context"
	"fmt"

	"github.com/smallbiznis/sekarnet/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("filestore",
	fx.Provide(New),
)

// New selects the store backend from STORAGE_DRIVER.
func New(cfg config.Config, log *zap.Logger) (Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		store, err := NewS3Store(context.Background(), cfg.Storage)
		if err != nil {
			return nil, err
		}
		log.Info("file store initialized", zap.String("driver", "s3"), zap.String("bucket", cfg.Storage.S3Bucket))
		return store, nil
	case config.StorageDriverLocal, "":
		store, err := NewLocalStore(cfg.Storage.UploadDir)
		if err != nil {
			return nil, err
		}
		log.Info("file store initialized", zap.String("driver", "local"), zap.String("dir", cfg.Storage.UploadDir))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
