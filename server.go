// Package titan wires the command Executor, the per-client RESP loop
// (client.go) and the status/metrics endpoint onto one listening port,
// muxed by protocol so an operator only has one address to open a
// firewall hole for.
package titan

import (
	"net"
	"sync/atomic"

	"github.com/cockroachdb/cmux"
	"github.com/distributedio/titanhfe/command"
	titancontext "github.com/distributedio/titanhfe/context"
	"github.com/distributedio/titanhfe/conf"
	"github.com/distributedio/titanhfe/metrics"
	"github.com/facebookgo/grace/gracenet"
	"go.uber.org/zap"
)

// Server accepts client connections, dispatching RESP traffic to the
// command Executor and HTTP traffic (pprof, /metrics) to the status
// server. Both are bound behind gracenet so a binary upgrade can hand
// off listening sockets without dropping in-flight connections.
type Server struct {
	servCtx  *titancontext.ServerContext
	exec     *command.Executor
	status   *metrics.Server
	listener net.Listener
	nextID   int64
	ready    chan struct{}
}

// NewServer builds a Server bound to cfg, ready to Serve once a listener
// is obtained (see ListenAndServe).
func NewServer(cfg *conf.Server, exec *command.Executor, servCtx *titancontext.ServerContext) *Server {
	return &Server{
		servCtx: servCtx,
		exec:    exec,
		status:  metrics.NewServer(cfg),
		ready:   make(chan struct{}),
	}
}

// Addr blocks until the RESP listener is bound, then returns its address;
// callers that passed ":0" to ListenAndServe use this to learn the port
// the OS actually picked.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// ListenAndServe binds addr through a gracenet.Net (so a future restart
// can inherit the listening socket), then muxes RESP and HTTP traffic
// off of it and serves both until the listener closes.
func (s *Server) ListenAndServe(addr string) error {
	var gnet gracenet.Net
	lis, err := gnet.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = lis
	close(s.ready)

	m := cmux.New(lis)
	httpL := m.Match(cmux.HTTP1Fast())
	respL := m.Match(cmux.Any())

	go func() {
		if err := s.status.Serve(httpL); err != nil {
			zap.L().Warn("status listener stopped", zap.Error(err))
		}
	}()
	go s.serveResp(respL)

	zap.L().Info("server listening", zap.String("addr", addr))
	return m.Serve()
}

func (s *Server) serveResp(lis net.Listener) {
	for {
		conn, err := lis.Accept()
		if err != nil {
			zap.L().Info("resp listener stopped", zap.Error(err))
			return
		}
		id := atomic.AddInt64(&s.nextID, 1)
		cliCtx := titancontext.NewClientContext(id, conn.RemoteAddr().String())
		c := newClient(cliCtx, s, s.exec)
		go func() {
			if err := c.serve(conn); err != nil {
				zap.L().Warn("client serve ended", zap.Int64("clientid", id), zap.Error(err))
			}
		}()
	}
}

// Stop closes the listener, unwinding both the HTTP status server and
// the RESP accept loop.
func (s *Server) Stop() error {
	s.status.Stop()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
