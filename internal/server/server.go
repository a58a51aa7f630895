// Package server implements the TCP front end described in spec §6: a
// listener that accepts connections and hands each one to the worker pool,
// which reads binary-framed Requests and writes binary-framed Responses
// per internal/protocol, dispatching to a store.Engine. Grounded on
// original_source/src/server.go's KvsServer/handle_stream, translated from
// the Rust non-blocking-poll-for-shutdown idiom into the idiomatic Go
// equivalent of simply closing the listener to unblock Accept.
package server

import (
	"bufio"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/arrowkv/kvs/internal/protocol"
	"github.com/arrowkv/kvs/internal/store"
	"github.com/arrowkv/kvs/internal/threadpool"
)

// Server dispatches requests from accepted connections, via pool, to
// engine.
type Server struct {
	engine store.Engine
	pool   threadpool.Pool
	log    *zap.SugaredLogger

	ln net.Listener
}

// New binds addr and returns a Server ready to Serve. The caller chooses
// the thread pool implementation (sharedqueue or naive).
func New(addr string, engine store.Engine, pool threadpool.Pool, log *zap.SugaredLogger) (*Server, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{engine: engine, pool: pool, log: log, ln: ln}, nil
}

// Addr returns the address the server is actually bound to (useful when
// addr was passed as "127.0.0.1:0" in tests).
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until Close is called, handing each one to the
// worker pool. It returns nil when the listener is closed deliberately.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warnw("accept failed", "error", err)
			continue
		}
		s.log.Infow("connection accepted", "remote", conn.RemoteAddr())
		s.pool.Spawn(func() { s.handleConn(conn) })
	}
}

// Close stops accepting new connections; connections already handed to the
// pool run to completion.
func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		req, err := protocol.ReadRequest(r)
		if err != nil {
			return
		}

		resp := s.dispatch(req)
		if err := protocol.WriteResponse(w, resp); err != nil {
			s.log.Warnw("failed writing response", "error", err)
			return
		}
		if err := w.Flush(); err != nil {
			s.log.Warnw("failed flushing response", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req protocol.Request) protocol.Response {
	switch req.Kind {
	case protocol.ReqSet:
		if err := s.engine.Set(req.Key, req.Value); err != nil {
			return protocol.ErrResponse(err.Error())
		}
		return protocol.OkNone()

	case protocol.ReqGet:
		value, ok, err := s.engine.Get(req.Key)
		if err != nil {
			return protocol.ErrResponse(err.Error())
		}
		if !ok {
			// Legacy wire quirk preserved per spec §9: a miss is reported
			// as Ok(Some("Key not found")), not Ok(None).
			return protocol.OkValue("Key not found")
		}
		return protocol.OkValue(value)

	case protocol.ReqRemove:
		if err := s.engine.Remove(req.Key); err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return protocol.ErrResponse("Key not found")
			}
			return protocol.ErrResponse(err.Error())
		}
		return protocol.OkNone()

	default:
		return protocol.ErrResponse("unknown request kind")
	}
}
