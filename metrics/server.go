package metrics

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/distributedio/titanhfe/conf"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the status endpoint: /metrics for Prometheus scraping plus
// the standard net/http/pprof handlers. Serve runs it on whatever
// listener it is handed (server.go passes the HTTP half of the muxed
// RESP port); conf.Server.StatusAddr is only recorded for log lines.
type Server struct {
	statusServer *http.Server
	addr         string
}

// NewServer builds a status Server for config, registering /metrics and
// the pprof handlers on its own mux so it never shares state with
// http.DefaultServeMux.
func NewServer(config *conf.Server) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &Server{
		addr:         config.StatusAddr,
		statusServer: &http.Server{Handler: mux},
	}
}

// Serve accepts incoming connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	zap.L().Info("status server start", zap.String("addr", s.addr))
	return s.statusServer.Serve(lis)
}

// Stop closes the server immediately, dropping any in-flight scrape.
func (s *Server) Stop() error {
	zap.L().Info("status server stop")
	if s.statusServer == nil {
		return nil
	}
	if err := s.statusServer.Close(); err != nil {
		zap.L().Error("status server stop failed", zap.Error(err))
		return err
	}
	zap.L().Info("status server stop succeeded", zap.String("addr", s.addr))
	return nil
}

// GracefulStop lets any in-flight scrape finish, up to one second.
func (s *Server) GracefulStop() error {
	zap.L().Info("status server graceful stop")
	if s.statusServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.statusServer.Shutdown(ctx); err != nil {
		zap.L().Error("status server graceful stop failed", zap.Error(err))
		return err
	}
	zap.L().Info("status server graceful stop succeeded", zap.String("addr", s.addr))
	return nil
}

// ListenAndServe starts the status server on addr directly, for
// callers that don't pre-bind a listener through gracenet/cmux.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		zap.L().Error("status server listen failed", zap.String("addr", addr), zap.Error(err))
		return err
	}
	zap.L().Info("status server start", zap.String("addr", s.addr))
	return s.statusServer.Serve(lis)
}
