package mdx

import "github.com/rs/zerolog"

// BuilderConfig collects the parameters spec.md §4.7 requires: block
// size budgets, compression/encryption method selection, locale and
// content-type metadata, and an optional password. Grounded on
// original_source's builder/zdb_builder.rs BuilderConfig, with
// device_id/build_mdd dropped (MDD sidecar orchestration is an
// explicit Non-goal) and the rest carried through as Go fields plus
// functional-option setters, following the options pattern used by
// arloliu-mebo's internal/options package.
type BuilderConfig struct {
	PreferredContentBlockSize uint32
	PreferredKeyBlockSize     uint32
	CompressionMethod         CompressionMethod
	EncryptionMethod          EncryptionMethod
	DefaultSortingLocale      string
	ContentType               string
	Password                  string

	// CryptoKey is derived during the build (from the UUID or the
	// password, never both) and is not user-settable.
	CryptoKey []byte

	logger zerolog.Logger
}

// DefaultBuilderConfig mirrors BuilderConfig::default() in
// zdb_builder.rs: 64KiB content blocks, 16KiB key blocks, Deflate
// compression, Salsa20 encryption, "root" locale, Html content.
func DefaultBuilderConfig() *BuilderConfig {
	return &BuilderConfig{
		PreferredContentBlockSize: 64 * 1024,
		PreferredKeyBlockSize:     16 * 1024,
		CompressionMethod:         CompressionDeflate,
		EncryptionMethod:          EncryptionSalsa20,
		DefaultSortingLocale:      "root",
		ContentType:               "Html",
		logger:                    discardLogger,
	}
}

// Option mutates a BuilderConfig; see With* constructors below.
type Option func(*BuilderConfig)

// NewBuilderConfig applies opts on top of DefaultBuilderConfig.
func NewBuilderConfig(opts ...Option) *BuilderConfig {
	cfg := DefaultBuilderConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func WithBlockSizes(contentBlockSize, keyBlockSize uint32) Option {
	return func(c *BuilderConfig) {
		c.PreferredContentBlockSize = contentBlockSize
		c.PreferredKeyBlockSize = keyBlockSize
	}
}

func WithCompression(method CompressionMethod) Option {
	return func(c *BuilderConfig) { c.CompressionMethod = method }
}

func WithEncryption(method EncryptionMethod) Option {
	return func(c *BuilderConfig) { c.EncryptionMethod = method }
}

func WithPassword(password string) Option {
	return func(c *BuilderConfig) { c.Password = password }
}

func WithLocale(localeID string) Option {
	return func(c *BuilderConfig) { c.DefaultSortingLocale = localeID }
}

func WithContentType(contentType string) Option {
	return func(c *BuilderConfig) { c.ContentType = contentType }
}
