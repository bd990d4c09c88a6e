package hubble

import "time"

const (
	// DefaultHost is the production collection endpoint.
	DefaultHost = "https://9o393i2p27.execute-api.eu-west-1.amazonaws.com/dev"

	// DefaultTimeout bounds a single Post when WithTimeout is not given.
	DefaultTimeout = 15 * time.Second
)

// PostOption configures a single call to Post.
type PostOption func(*postOptions)

// postOptions holds the per-call settings of Post.
type postOptions struct {
	host    string
	gzip    bool
	timeout time.Duration
}

func defaultPostOptions() postOptions {
	return postOptions{
		host:    DefaultHost,
		timeout: DefaultTimeout,
	}
}

// WithHost overrides the API host. An empty host keeps DefaultHost.
func WithHost(host string) PostOption {
	return func(o *postOptions) {
		if host != "" {
			o.host = host
		}
	}
}

// WithGzip enables gzip compression of the request body.
func WithGzip(enabled bool) PostOption {
	return func(o *postOptions) {
		o.gzip = enabled
	}
}

// WithTimeout bounds the request, including reading the response body.
// Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) PostOption {
	return func(o *postOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}
