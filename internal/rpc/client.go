package rpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/populate/internal/compiler"
	"github.com/hanpama/populate/internal/eventbus"
	"github.com/hanpama/populate/internal/events"
	"github.com/hanpama/populate/internal/reqid"
)

var ErrClosed = errors.New("rpc: client closed")

// Client calls a remote Compiler service over a small connection pool.
type Client struct {
	target string
	opts   *Options
	conns  chan *grpc.ClientConn

	mu     sync.RWMutex
	closed atomic.Bool
}

// NewClient does not connect; connections are opened on first use.
func NewClient(target string, opts ...Option) *Client {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	n := o.MaxConns
	if n <= 0 {
		n = 2
	}
	return &Client{
		target: target,
		opts:   o,
		conns:  make(chan *grpc.ClientConn, n),
	}
}

func (c *Client) Target() string { return c.target }

// Compile sends req and returns the structured query. Key order of the
// result is not preserved by google.protobuf.Struct.
func (c *Client) Compile(ctx context.Context, req compiler.Request) (resp *structpb.Struct, err error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	md, err := compileMethod()
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && c.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RPCTimeout)
		defer cancel()
	}
	if id, ok := reqid.FromContext(ctx); ok {
		ctx = metadata.AppendToOutgoingContext(ctx, reqid.Header, id)
	}

	cc, err := c.get()
	if err != nil {
		return nil, err
	}
	defer c.put(cc)

	start := time.Now()
	eventbus.Publish(ctx, events.RPCStart{Method: FullMethod, Target: c.target, Client: true})
	defer func() {
		eventbus.Publish(ctx, events.RPCFinish{
			Method:   FullMethod,
			Target:   c.target,
			Client:   true,
			Code:     status.Code(err),
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	resp = &structpb.Struct{}
	if err = cc.Invoke(ctx, FullMethod, encodeRequest(md.Input(), req), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Close releases pooled connections. Connections in use are closed when
// they are returned.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.conns)
	var errs []error
	for cc := range c.conns {
		errs = append(errs, cc.Close())
	}
	return errors.Join(errs...)
}

func (c *Client) get() (*grpc.ClientConn, error) {
	select {
	case cc, ok := <-c.conns:
		if ok {
			return cc, nil
		}
		return nil, ErrClosed
	default:
		return grpc.NewClient(c.target, c.opts.DialOptions...)
	}
}

func (c *Client) put(cc *grpc.ClientConn) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		_ = cc.Close()
		return
	}
	select {
	case c.conns <- cc:
	default:
		_ = cc.Close()
	}
}
