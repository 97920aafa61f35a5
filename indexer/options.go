package indexer

import "github.com/go-git/go-pack-indexer/cache"

// Option configures an Indexer at construction time. The zero value of
// every option is a sensible default, following the teacher's functional-
// options convention rather than a config-file format this module has no
// other use for.
type Option func(*config)

type config struct {
	cacheSize   int
	writeChunk  int
	workerCount int
}

func defaultConfig() config {
	return config{
		cacheSize:   cache.DefaultMaxSize,
		writeChunk:  defaultWriteChunk,
		workerCount: 1,
	}
}

// WithCacheSize bounds the resolved-content cache's memory budget in
// bytes. A value <= 0 falls back to cache.DefaultMaxSize.
func WithCacheSize(bytes int) Option {
	return func(c *config) {
		if bytes > 0 {
			c.cacheSize = bytes
		}
	}
}

// WithWriteChunk bounds the largest single write the append writer issues
// to the underlying file, for platforms with a maximum write-size limit.
// A value <= 0 falls back to the platform default.
func WithWriteChunk(bytes int) Option {
	return func(c *config) {
		if bytes > 0 {
			c.writeChunk = bytes
		}
	}
}

// WithResolverWorkers gates §5's permitted resolver parallelism: a value
// greater than 1 lets independent delta chains resolve concurrently. The
// default of 1 keeps resolution strictly single-threaded.
func WithResolverWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workerCount = n
		}
	}
}
