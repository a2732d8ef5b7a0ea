package service

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	log *zap.Logger
	now func() time.Time
}

// Option customises a service. Shared by every service in this package.
type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithNowFunc can be used to override the clock. Useful for testing.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		log: zap.NewNop(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
