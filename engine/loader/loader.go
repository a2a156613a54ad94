// Package loader resolves logical resource keys to tiered asset locators and fetches the
// textures behind them.
package loader

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	// Registered decoders for image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrEmptyLocator is returned when Fetch is called without a locator.
var ErrEmptyLocator = errors.New("empty locator")

// Resource is a decoded texture.
type Resource struct {
	Locator string
	Format  string
	Width   int
	Height  int
	// Bytes is the decoded RGBA footprint, width * height * 4.
	Bytes int64
	Image image.Image
}

// Fetcher retrieves the resource behind a locator. Implementations may block; callers run
// them off the tick goroutine.
type Fetcher interface {
	Fetch(locator string) (Resource, error)
}

// FetchFunc adapts a plain function to Fetcher.
type FetchFunc func(locator string) (Resource, error)

func (f FetchFunc) Fetch(locator string) (Resource, error) {
	return f(locator)
}

// Releaser is implemented by fetchers that hold resources until told to drop them.
type Releaser interface {
	Release(locator string)
}

// ImageFetcher decodes textures from disk or inline data URIs and caches them by locator.
type ImageFetcher interface {
	Fetcher
	Releaser

	// Get returns a cached resource without fetching.
	//
	// Parameters:
	//   - locator: the cache key
	//
	// Returns:
	//   - Resource: the cached resource
	//   - bool: true if the locator was cached
	Get(locator string) (Resource, bool)

	// ResidentBytes returns the decoded size of every cached texture.
	ResidentBytes() int64

	// Len returns the number of cached textures.
	Len() int
}

type imageFetcher struct {
	mu sync.RWMutex

	fsys     fs.FS
	keepData bool

	cache    map[string]Resource
	resident int64
}

var _ ImageFetcher = &imageFetcher{}

// NewImageFetcher creates an ImageFetcher reading from the OS filesystem.
//
// Parameters:
//   - options: functional options to configure the fetcher
//
// Returns:
//   - ImageFetcher: the newly created fetcher
func NewImageFetcher(options ...FetcherBuilderOption) ImageFetcher {
	f := &imageFetcher{
		cache: make(map[string]Resource),
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *imageFetcher) Fetch(locator string) (Resource, error) {
	if locator == "" {
		return Resource{}, ErrEmptyLocator
	}

	f.mu.RLock()
	if cached, ok := f.cache[locator]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	data, err := f.read(locator)
	if err != nil {
		return Resource{}, fmt.Errorf("failed to read %s: %w", shorten(locator), err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Resource{}, fmt.Errorf("failed to decode %s: %w", shorten(locator), err)
	}

	b := img.Bounds()
	res := Resource{
		Locator: locator,
		Format:  format,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Bytes:   int64(b.Dx()) * int64(b.Dy()) * 4,
	}
	if f.keepData {
		res.Image = img
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Another fetch may have raced this one in.
	if cached, ok := f.cache[locator]; ok {
		return cached, nil
	}
	f.cache[locator] = res
	f.resident += res.Bytes
	return res, nil
}

// read returns the raw bytes behind a file path or data URI.
func (f *imageFetcher) read(locator string) ([]byte, error) {
	if strings.HasPrefix(locator, "data:") {
		data, _, err := decodeDataURI(locator)
		return data, err
	}
	if f.fsys != nil {
		return fs.ReadFile(f.fsys, strings.TrimPrefix(locator, "/"))
	}
	file, err := os.Open(locator)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (f *imageFetcher) Release(locator string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.cache[locator]; ok {
		f.resident -= res.Bytes
		delete(f.cache, locator)
	}
}

func (f *imageFetcher) Get(locator string) (Resource, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	res, ok := f.cache[locator]
	return res, ok
}

func (f *imageFetcher) ResidentBytes() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.resident
}

func (f *imageFetcher) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

// decodeDataURI decodes data:[<mediatype>][;base64],<data>.
func decodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", fmt.Errorf("not a data URI")
	}

	commaIdx := strings.Index(uri, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("malformed data URI: no comma found")
	}

	header := uri[5:commaIdx]
	encoded := uri[commaIdx+1:]

	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return []byte(encoded), mimeType, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, mimeType, nil
}

// shorten keeps data URIs out of error messages.
func shorten(locator string) string {
	if strings.HasPrefix(locator, "data:") && len(locator) > 32 {
		return locator[:32] + "..."
	}
	return locator
}
