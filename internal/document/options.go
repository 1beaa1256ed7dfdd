package document

import (
	"log/slog"

	"github.com/google/uuid"
)

// MaxHistorySize is the default cap on retained history entries.
const MaxHistorySize = 1000

// IDGenerator produces a globally unique document identifier.
type IDGenerator func() string

// DefaultIDGenerator returns random v4 UUIDs.
func DefaultIDGenerator() string {
	return uuid.NewString()
}

type options struct {
	logger     *slog.Logger
	newID      IDGenerator
	maxHistory int
}

// Option configures a Record or an Accumulator.
type Option func(*options)

// WithLogger sets the logger used for merge diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator replaces the identity generation strategy.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithMaxHistory overrides MaxHistorySize. Non-positive values are ignored.
func WithMaxHistory(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxHistory = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:     slog.Default(),
		newID:      DefaultIDGenerator,
		maxHistory: MaxHistorySize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
