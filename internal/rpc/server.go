package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"

	"propertysanta/engine/internal/logging"
)

const (
	jsonRPCVersion = "2.0"
	rpcErrorCode   = -32000
	// Two base64 photos at the image ceiling fit in one message.
	maxMessageSize = 64 * 1024 * 1024
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	APIVer  string          `json:"api_version,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler func(ctx context.Context, params json.RawMessage) (any, *Error)

type Error struct {
	Message string
	Data    any
}

// ParamKey returns a gjson path into the params; requests whose value at the
// path is equal run one at a time in arrival order.
type ParamKey string

type route struct {
	handler Handler
	key     ParamKey
}

type lane struct {
	pending []func()
	running bool
}

type Server struct {
	apiVersion string
	reader     *bufio.Reader
	writer     *bufio.Writer
	mu         sync.Mutex
	routes     map[string]route
	laneMu     sync.Mutex
	lanes      map[string]*lane
	inflight   sync.WaitGroup
	logger     *slog.Logger
}

func NewServer(apiVersion string, r io.Reader, w io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		apiVersion: apiVersion,
		reader:     bufio.NewReader(r),
		writer:     bufio.NewWriter(w),
		routes:     make(map[string]route),
		lanes:      make(map[string]*lane),
		logger:     logger,
	}
}

func (s *Server) Register(method string, handler Handler) {
	s.routes[method] = route{handler: handler}
}

// RegisterOrdered registers a handler whose requests are serialised per
// value of key.
func (s *Server) RegisterOrdered(method string, key ParamKey, handler Handler) {
	s.routes[method] = route{handler: handler, key: key}
}

// Methods lists the registered method names.
func (s *Server) Methods() []string {
	out := make([]string, 0, len(s.routes))
	for name := range s.routes {
		out = append(out, name)
	}
	return out
}

// Serve reads requests until EOF and waits for in-flight handlers before
// returning.
func (s *Server) Serve(ctx context.Context) error {
	defer s.inflight.Wait()
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.logger.Error("rpc.read_failed", "error", err.Error())
			return err
		}
		if len(line) == 0 {
			continue
		}
		if len(line) > maxMessageSize {
			s.logger.Warn("rpc.message_too_large", "bytes", len(line))
			s.sendError(nil, "message too large", nil)
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("rpc.invalid_json", "error", err.Error())
			s.sendError(nil, "invalid json", nil)
			continue
		}
		if req.JSONRPC != jsonRPCVersion {
			s.logger.Warn("rpc.invalid_version", "version", req.JSONRPC)
			s.sendError(req.ID, "invalid jsonrpc version", nil)
			continue
		}
		if req.APIVer != "" && req.APIVer != s.apiVersion {
			s.logger.Warn("rpc.incompatible_version", "requested", req.APIVer, "expected", s.apiVersion)
			s.sendError(req.ID, "incompatible api_version", map[string]string{"expected": s.apiVersion})
			continue
		}
		rt, ok := s.routes[req.Method]
		if !ok {
			s.logger.Warn("rpc.method_not_found", "method", req.Method)
			s.sendError(req.ID, fmt.Sprintf("method not found: %s", req.Method), nil)
			continue
		}
		s.logger.Debug("rpc.request", "method", req.Method, "id", string(req.ID), "params", logging.RedactJSON(req.Params))

		s.inflight.Add(1)
		run := func() {
			defer s.inflight.Done()
			s.handleRequest(ctx, req, rt.handler)
		}
		if rt.key == "" {
			go run()
			continue
		}
		s.enqueue(gjson.GetBytes(req.Params, string(rt.key)).String(), run)
	}
}

func (s *Server) enqueue(key string, fn func()) {
	s.laneMu.Lock()
	l, ok := s.lanes[key]
	if !ok {
		l = &lane{}
		s.lanes[key] = l
	}
	l.pending = append(l.pending, fn)
	if l.running {
		s.laneMu.Unlock()
		return
	}
	l.running = true
	s.laneMu.Unlock()
	go s.drain(key, l)
}

func (s *Server) drain(key string, l *lane) {
	for {
		s.laneMu.Lock()
		if len(l.pending) == 0 {
			l.running = false
			delete(s.lanes, key)
			s.laneMu.Unlock()
			return
		}
		fn := l.pending[0]
		l.pending = l.pending[1:]
		s.laneMu.Unlock()
		fn()
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request, handler Handler) {
	result, err := handler(ctx, req.Params)
	if req.ID == nil {
		return
	}
	if err != nil {
		s.logger.Error("rpc.response_error", "method", req.Method, "id", string(req.ID), "error", logging.RedactAny(err.Data))
		s.sendError(req.ID, err.Message, err.Data)
		return
	}
	s.logger.Debug("rpc.response", "method", req.Method, "id", string(req.ID), "result", logging.RedactAny(result))
	s.send(Response{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result})
}

func (s *Server) Notify(method string, params any) {
	s.logger.Debug("rpc.notify", "method", method, "params", logging.RedactAny(params))
	s.send(Notification{JSONRPC: jsonRPCVersion, Method: method, Params: params})
}

func (s *Server) sendError(id json.RawMessage, message string, data any) {
	s.send(Response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &ErrorPayload{Code: rpcErrorCode, Message: message, Data: data},
	})
}

func (s *Server) send(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("rpc.marshal_failed", "error", err.Error())
		return
	}
	_, _ = s.writer.Write(append(data, '\n'))
	_ = s.writer.Flush()
}
