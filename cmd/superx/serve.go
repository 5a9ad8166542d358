package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/superx/inspector"
	"github.com/hazyhaar/superx/mcpquic"
	"github.com/hazyhaar/superx/shield"
)

const version = "0.1.0"

func newMCPServer(svc *inspector.Service) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "superx", Version: version}, nil)
	svc.RegisterMCP(srv)
	return srv
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		listen          string
		quicAddr        string
		tlsCert, tlsKey string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API, the live websocket and MCP over HTTP",
		Long: `Start the HTTP server:

  GET  /health
  POST /api/generate, /api/query, /api/annotate
  GET|POST /api/locators, GET|DELETE /api/locators/{id}
  POST /api/locators/{id}/verify, GET /api/locators/{id}/checks
  GET  /api/audit     recorded operations (with --audit)
  GET  /api/live      websocket session
  /mcp                MCP streamable HTTP

Requests arriving over the network may not read local files unless
--files-root or --allow-files is given, and may not fetch loopback or
private addresses unless --allow-private is given. --block-private also
guards local callers.
With --mcp-quic, MCP is also served over QUIC. Without --tls-cert and
--tls-key a self-signed certificate is generated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cfg, logger, err := g.service(inspector.Exposed())
			if err != nil {
				return err
			}
			defer svc.Close()
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mcpSrv := newMCPServer(svc)

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)
			r.Use(shield.Stack(shield.DefaultMaxBody)...)
			svc.RegisterHTTP(r)
			r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))

			if quicAddr != "" {
				if err := serveQUIC(ctx, quicAddr, tlsCert, tlsKey, mcpSrv, logger); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				logger.Info("superx: server starting", "addr", cfg.Listen)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			logger.Info("superx: shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("superx: shutdown", "error", err)
			}
			logger.Info("superx: server stopped")
			return nil
		},
	}
	g.registerGuards(cmd)
	cmd.Flags().BoolVar(&g.allowFiles, "allow-files", false, "let network callers read any local path")
	cmd.Flags().BoolVar(&g.allowPrivate, "allow-private", false, "let network callers fetch loopback and private URLs")
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default from config, 127.0.0.1:8086)")
	cmd.Flags().StringVar(&quicAddr, "mcp-quic", "", "also serve MCP over QUIC on this UDP address")
	cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "certificate for the QUIC listener")
	cmd.Flags().StringVar(&tlsKey, "tls-key", "", "private key for the QUIC listener")
	return cmd
}

func serveQUIC(ctx context.Context, addr, certFile, keyFile string, mcpSrv *mcp.Server, logger *slog.Logger) error {
	var (
		tlsCfg *tls.Config
		err    error
	)
	if certFile != "" && keyFile != "" {
		tlsCfg, err = mcpquic.ServerTLSConfig(certFile, keyFile)
	} else {
		tlsCfg, err = mcpquic.SelfSignedTLSConfig()
	}
	if err != nil {
		return err
	}
	l, err := mcpquic.NewListener(addr, tlsCfg, mcpSrv, logger)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	go func() {
		if err := l.Serve(ctx); err != nil && ctx.Err() == nil {
			logger.Error("superx: mcp quic", "error", err)
		}
	}()
	return nil
}

func newMCPCmd(g *globalFlags) *cobra.Command {
	var (
		connect  string
		tool     string
		args     string
		insecure bool
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP over stdio, or call a remote QUIC server",
		Long: `Run an MCP server on stdin/stdout exposing superx_generate, superx_query
and the locator tools. Logs go to stderr.

With --connect, act as a client of a "superx serve --mcp-quic" server
instead: list its tools, or call --tool with --args (a JSON object) and
print the result.

  superx mcp --connect host:8443 --insecure
  superx mcp --connect host:8443 --tool superx_query --args '{"url":"https://example.com","expr":"//a"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if connect != "" {
				return callRemote(ctx, cmd.OutOrStdout(), connect, tool, args, insecure)
			}

			svc, _, logger, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			logger.Info("superx: mcp stdio starting")
			if err := newMCPServer(svc).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	g.registerGuards(cmd)
	cmd.Flags().StringVar(&connect, "connect", "", "call a remote MCP server over QUIC at host:port")
	cmd.Flags().StringVar(&tool, "tool", "", "tool to call with --connect (lists tools when empty)")
	cmd.Flags().StringVar(&args, "args", "{}", "tool arguments as a JSON object")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip server certificate verification")
	return cmd
}

var errRemoteTool = errors.New("remote tool failed")

// callRemote lists the tools of a QUIC MCP server, or calls one and writes
// its text content.
func callRemote(ctx context.Context, w io.Writer, addr, tool, rawArgs string, insecure bool) error {
	var args map[string]any
	if tool != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fmt.Errorf("--args: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	c := mcpquic.NewClient(addr, mcpquic.ClientTLSConfig(insecure))
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	if tool == "" {
		res, err := c.ListTools(ctx)
		if err != nil {
			return err
		}
		for _, t := range res.Tools {
			fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
		}
		return nil
	}

	res, err := c.CallTool(ctx, tool, args)
	if err != nil {
		return err
	}
	var text []string
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			text = append(text, tc.Text)
		}
	}
	if res.IsError {
		return fmt.Errorf("%w: %s: %s", errRemoteTool, tool, strings.Join(text, "; "))
	}
	for _, t := range text {
		fmt.Fprintln(w, t)
	}
	return nil
}
