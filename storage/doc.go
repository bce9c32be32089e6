// Package storage is the object store behind job output caching.
//
// A Storage is selected by provider name and built with New once the
// provider package has been linked in:
//
//	import _ "github.com/kbukum/taskchain/storage/local"
//
//	st, err := storage.New(ctx, storage.Config{Provider: "local", BasePath: "/var/cache/taskchain"}, log)
//
// # Backends
//
//   - storage/local: files under a base directory, written atomically
//   - storage/s3: Amazon S3 and S3-compatible services
//
// # Configuration
//
//	storage:
//	  provider: "s3"
//	  bucket: "pipeline-cache"
//	  region: "eu-west-1"
//	  prefix: "nightly"
package storage
