package stores

import (
	"github.com/sirupsen/logrus"

	"framebooth/config"
	"framebooth/core"
	"framebooth/stores/aws"
	"framebooth/stores/filesystem"
	"framebooth/stores/memory"
	"framebooth/stores/sqlite"
)

// GetStore selects the template store backend from configuration. Unknown or
// empty storage types fall back to the in-memory store.
func GetStore(cfg *config.Config) core.TemplateStore {
	var store core.TemplateStore

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store = filesystem.NewStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		if cfg.S3BucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.S3BucketName
		store = aws.NewStore(cfg.S3BucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
