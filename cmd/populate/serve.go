package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hanpama/populate/internal/cli"
	"github.com/hanpama/populate/internal/compiler"
	"github.com/hanpama/populate/internal/otel"
	"github.com/hanpama/populate/internal/rpc"
	"github.com/hanpama/populate/internal/server"
	"github.com/hanpama/populate/internal/watch"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	httpAddr     string
	grpcAddr     string
	pretty       bool
	maxBodyBytes int64
	corsOrigins  []string
	watch        bool
}

func (a *app) serveCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiler over HTTP and gRPC",
		Long: `Serve the compiler over HTTP (POST/GET /compile, POST /explain,
GET /index, GET /healthz) and, when a gRPC address is set, over the
populate.v1.Compiler service. With --watch the schema is reloaded when its
files change; requests in flight keep the schema they started with.`,
		Example: `  # HTTP only
  populate serve --schema schema.graphql

  # HTTP and gRPC with hot reload
  populate serve --http-addr :8080 --grpc-addr :9090 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			sc := a.cfg.Server
			if flags.Changed("http-addr") {
				sc.HTTPAddr = f.httpAddr
			}
			if flags.Changed("grpc-addr") {
				sc.GRPCAddr = f.grpcAddr
			}
			if flags.Changed("max-body-bytes") {
				sc.MaxBodyBytes = f.maxBodyBytes
			}
			if flags.Changed("cors-origin") {
				sc.CORSOrigins = f.corsOrigins
			}
			if flags.Changed("watch") {
				sc.Watch = f.watch
			}
			return a.serve(cmd.Context(), sc, f.pretty || a.cfg.Output.Pretty)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.httpAddr, "http-addr", "", "HTTP listen address (empty disables HTTP)")
	fl.StringVar(&f.grpcAddr, "grpc-addr", "", "gRPC listen address (empty disables gRPC)")
	fl.BoolVar(&f.pretty, "pretty", false, "pretty-print JSON responses")
	fl.Int64Var(&f.maxBodyBytes, "max-body-bytes", 0, "maximum request body size (0 for unlimited)")
	fl.StringSliceVar(&f.corsOrigins, "cors-origin", nil, `allowed CORS origins ("*" for any)`)
	fl.BoolVar(&f.watch, "watch", false, "reload the schema when its files change")
	return cmd
}

func (a *app) serve(ctx context.Context, sc cli.ServerConfig, pretty bool) error {
	if sc.HTTPAddr == "" && sc.GRPCAddr == "" {
		return cli.ConfigError("nothing to serve", errors.New("set server.http_addr or server.grpc_addr"))
	}
	c, err := a.loadCompiler()
	if err != nil {
		return err
	}
	holder := compiler.NewHolder(c)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := otel.Setup(ctx, a.cfg.Otel.Endpoint, a.cfg.Otel.Service)
	if err != nil {
		return cli.ConfigError("otel setup", err)
	}
	defer func() { _ = shutdownOtel(context.Background()) }()

	g, ctx := errgroup.WithContext(ctx)

	if sc.HTTPAddr != "" {
		var opts []server.Option
		if pretty {
			opts = append(opts, server.WithPretty())
		}
		if sc.MaxBodyBytes > 0 {
			opts = append(opts, server.WithMaxBodyBytes(sc.MaxBodyBytes))
		}
		if len(sc.CORSOrigins) > 0 {
			opts = append(opts, server.WithCORS(sc.CORSOrigins...))
		}
		srv := &http.Server{
			Addr:              sc.HTTPAddr,
			Handler:           server.New(holder, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("HTTP server listening", "addr", sc.HTTPAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if sc.GRPCAddr != "" {
		lis, err := net.Listen("tcp", sc.GRPCAddr)
		if err != nil {
			return cli.GeneralError("listening on "+sc.GRPCAddr, err)
		}
		gs := grpc.NewServer()
		if err := rpc.Register(gs, holder); err != nil {
			return cli.GeneralError("registering gRPC service", err)
		}
		g.Go(func() error {
			a.logger.Info("gRPC server listening", "addr", lis.Addr().String())
			return gs.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			gs.GracefulStop()
			return nil
		})
	}

	if sc.Watch {
		w, err := watch.New(a.cfg.Schema.Path, a.cfg.LoadCompiler, holder)
		if err != nil {
			return cli.GeneralError("watching schema", err)
		}
		g.Go(func() error { return w.Run(ctx, nil) })
	}

	return g.Wait()
}
