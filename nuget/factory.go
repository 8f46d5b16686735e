package nuget

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
)

// NewSource creates the package source selected by the configuration
func NewSource(logger *zap.Logger, cfg *config.Config) (Source, error) {
	src := cfg.Resolver.Source

	switch src.Kind {
	case SourceHTTP:
		return NewHTTPSource(logger, src.URL,
			WithIndexCacheSize(cfg.Resolver.IndexCacheSize),
			WithMaxPackageBytes(int64(cfg.Resolver.MaxPackageSizeMB)*1024*1024),
		)
	case SourceS3:
		return NewS3Source(logger, S3Config{
			Endpoint:  src.S3.Endpoint,
			Region:    src.S3.Region,
			AccessKey: src.S3.AccessKey,
			SecretKey: src.S3.SecretKey,
			Bucket:    src.S3.Bucket,
			UseSSL:    src.S3.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", src.Kind)
	}
}
