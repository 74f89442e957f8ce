package mdx

import (
	"io"

	"github.com/rs/zerolog"
)

// discardLogger is the BuilderConfig default when a caller doesn't
// supply a logger.
var discardLogger = zerolog.New(io.Discard)

// WithLogger stores a zerolog.Logger on the BuilderConfig. No code in
// this package writes to it: builds, reads, cache evictions and checksum
// failures produce no log output. Reader takes no logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *BuilderConfig) { c.logger = logger }
}
