package providers

import (
	"log/slog"
	"strings"
)

type providerOptions struct {
	baseURL string
	logger  *slog.Logger
}

// Option customizes a provider.
type Option func(*providerOptions)

// WithBaseURL overrides the upstream API root (no trailing slash needed).
func WithBaseURL(u string) Option {
	return func(o *providerOptions) {
		if u != "" {
			o.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLogger sets the logger used for degraded forecast lookups.
func WithLogger(l *slog.Logger) Option {
	return func(o *providerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(defaultBaseURL string, opts []Option) providerOptions {
	o := providerOptions{baseURL: defaultBaseURL, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
