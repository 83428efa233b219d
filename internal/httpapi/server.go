package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	logx "freshshare/pkg/logx"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	shutdownTimeout          = 10 * time.Second
)

type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
}

type Server struct {
	addr string
	srv  *http.Server
	log  logx.Logger
}

func NewServer(cfg Config, handler http.Handler, log logx.Logger) *Server {
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{
		addr: cfg.Addr,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		log: log,
	}
}

// Run serves until ctx ends, then drains in-flight requests with a bounded
// shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	serveErr := make(chan error, 1)
	s.log.Info("http api listening", logx.String("addr", ln.Addr().String()))
	go func() { serveErr <- s.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
