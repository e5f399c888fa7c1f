package econsheet

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Option configures grid generation, default synthesis and editing.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *zap.Logger
	locale language.Tag
}

func newOptions(opts []Option) *options {
	o := &options{
		now:    time.Now,
		logger: zap.NewNop(),
		locale: language.AmericanEnglish,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithClock sets the clock used for date defaults.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger that records shape repairs and select fallbacks.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLocale sets the locale used to group digits in display values.
func WithLocale(tag language.Tag) Option {
	return func(o *options) {
		o.locale = tag
	}
}
