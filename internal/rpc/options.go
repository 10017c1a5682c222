package rpc

import (
	"time"

	"google.golang.org/grpc"
)

// Options configures a Client.
//
// Defaults:
// - MaxConns:    2 pooled connections
// - RPCTimeout:  3s (used only if the context has no deadline)
// - DialOptions: insecure credentials with default backoff
type Options struct {
	MaxConns    int
	RPCTimeout  time.Duration
	DialOptions []grpc.DialOption
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		MaxConns:   2,
		RPCTimeout: 3 * time.Second,
	}
}

func WithMaxConns(n int) Option             { return func(o *Options) { o.MaxConns = n } }
func WithRPCTimeout(d time.Duration) Option { return func(o *Options) { o.RPCTimeout = d } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}
