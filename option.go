package clusterdb

const (
	// DefaultOrder is the default maximum number of keys per tree node
	DefaultOrder = 64

	// DefaultRowCacheSize is the default number of decoded rows kept in the
	// clustered index's row cache
	DefaultRowCacheSize = 1024
)

// Options configures table behavior.
type Options struct {
	order        int    // Max keys per node in every index of the table.
	logger       Logger // Receives index lifecycle, rollback and corruption events.
	rowCacheSize int    // Rows cached by primary key. 0 disables the cache.
}

// DefaultOptions returns the default configuration.
//
// goland:noinspection GoUnusedExportedFunction
func DefaultOptions() Options {
	return Options{
		order:        DefaultOrder,
		logger:       DiscardLogger{},
		rowCacheSize: DefaultRowCacheSize,
	}
}

// Option configures table options using the functional options pattern.
type Option func(*Options)

// WithOrder sets the maximum number of keys per node. Small orders give
// deep trees and are mostly useful in tests; the minimum is 3.
//
//goland:noinspection GoUnusedExportedFunction
func WithOrder(order int) Option {
	return func(opts *Options) {
		opts.order = order
	}
}

// WithLogger sets the logger. A nil logger discards everything.
//
//goland:noinspection GoUnusedExportedFunction
func WithLogger(logger Logger) Option {
	return func(opts *Options) {
		if logger == nil {
			logger = DiscardLogger{}
		}
		opts.logger = logger
	}
}

// WithRowCacheSize sets how many decoded rows the clustered index caches.
// Zero disables the cache.
//
//goland:noinspection GoUnusedExportedFunction
func WithRowCacheSize(rows int) Option {
	return func(opts *Options) {
		opts.rowCacheSize = max(rows, 0)
	}
}
