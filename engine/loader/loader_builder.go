package loader

import (
	"io/fs"

	"github.com/Carmen-Shannon/oxy-stream/common"
)

// ResolverBuilderOption is a functional option for configuring a TieredResolver via NewTieredResolver.
type ResolverBuilderOption func(*tieredResolverImpl)

// WithManifest adds explicit key-to-path entries that bypass the tier directory layout.
// Entries are relative to the resolver root.
//
// Parameters:
//   - manifest: logical key to relative path
//
// Returns:
//   - ResolverBuilderOption: a function that merges the manifest into the resolver
func WithManifest(manifest map[string]string) ResolverBuilderOption {
	return func(r *tieredResolverImpl) {
		for k, v := range manifest {
			r.manifest[k] = v
		}
	}
}

// WithTierDir overrides the directory name used for one tier.
//
// Parameters:
//   - tier: the tier to override
//   - dir: the directory name under the root
//
// Returns:
//   - ResolverBuilderOption: a function that sets the tier directory
func WithTierDir(tier common.QualityTier, dir string) ResolverBuilderOption {
	return func(r *tieredResolverImpl) {
		r.dirs[tier] = dir
	}
}

// WithExtension sets the extension appended to keys that have none.
func WithExtension(ext string) ResolverBuilderOption {
	return func(r *tieredResolverImpl) {
		r.extension = ext
	}
}

// FetcherBuilderOption is a functional option for configuring an ImageFetcher via NewImageFetcher.
type FetcherBuilderOption func(*imageFetcher)

// WithFS reads file locators from fsys instead of the OS filesystem.
//
// Parameters:
//   - fsys: the filesystem to read from
//
// Returns:
//   - FetcherBuilderOption: a function that sets the filesystem
func WithFS(fsys fs.FS) FetcherBuilderOption {
	return func(f *imageFetcher) {
		f.fsys = fsys
	}
}

// WithKeepImages retains decoded pixels on each Resource for upload.
func WithKeepImages(keep bool) FetcherBuilderOption {
	return func(f *imageFetcher) {
		f.keepData = keep
	}
}
