// Package server runs the dispatch loop: it reads one request per input
// line, routes it to a tool or protocol handler, and writes exactly one
// response line before the next request is read.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/websearch-worker/internal/clock/system"
	"github.com/JakeFAU/websearch-worker/internal/id/uuid"
	"github.com/JakeFAU/websearch-worker/internal/metrics"
	"github.com/JakeFAU/websearch-worker/internal/protocol"
	"github.com/JakeFAU/websearch-worker/internal/retrieval"
	"github.com/JakeFAU/websearch-worker/internal/tools"
)

// Registry resolves tool names. *tools.Registry satisfies it.
type Registry interface {
	Lookup(name string) (tools.Tool, bool)
	Infos() []protocol.ToolInfo
}

// Deps are the collaborators a Server owns or consults.
type Deps struct {
	Registry Registry
	Fetcher  retrieval.Fetcher
	Clock    retrieval.Clock
	IDs      retrieval.IDGenerator
	Logger   *zap.Logger
}

// Server is the dispatch loop state. Its lifecycle is Start, then Serve,
// then Stop.
type Server struct {
	name     string
	version  string
	registry Registry
	fetcher  retrieval.Fetcher
	clock    retrieval.Clock
	ids      retrieval.IDGenerator
	logger   *zap.Logger

	writeMu sync.Mutex
	out     io.Writer

	stopOnce sync.Once
	stopErr  error
}

// New builds a Server that writes responses to out.
func New(name, version string, deps Deps, out io.Writer) *Server {
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{
		name:     name,
		version:  version,
		registry: deps.Registry,
		fetcher:  deps.Fetcher,
		clock:    deps.Clock,
		ids:      deps.IDs,
		logger:   deps.Logger,
		out:      out,
	}
}

// Start announces the server and its tools to the client.
func (s *Server) Start() error {
	infos := s.registry.Infos()
	if err := s.emit(protocol.NewInitialize(s.name, s.version, infos)); err != nil {
		return err
	}
	s.logger.Info("server initialized",
		zap.String("name", s.name),
		zap.String("version", s.version),
		zap.Int("tools", len(infos)),
	)
	return nil
}

// Serve handles requests from in until end of input (nil) or until ctx is
// done (ctx.Err()). Each line is answered before the next one is read.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	lines := make(chan []byte)
	next := make(chan struct{})
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case lines <- line:
				case <-done:
					return
				}
				select {
				case <-next:
				case <-done:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- fmt.Errorf("read request: %w", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("serve canceled", zap.Error(ctx.Err()))
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
				}
				s.logger.Info("end of input")
				return nil
			}
			if err := s.handleLine(ctx, line); err != nil {
				return err
			}
			next <- struct{}{}
		}
	}
}

// Stop releases the HTTP session. It is safe to call more than once.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.logger.Info("shutting down server")
		if s.fetcher != nil {
			if err := s.fetcher.Close(); err != nil {
				s.stopErr = fmt.Errorf("close fetcher: %w", err)
			}
		}
	})
	return s.stopErr
}

func (s *Server) handleLine(ctx context.Context, line []byte) error {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	return s.emit(s.Handle(ctx, trimmed))
}

// Handle turns one request line into its response value.
func (s *Server) Handle(ctx context.Context, line []byte) any {
	req, err := protocol.Decode(line)
	if err != nil {
		s.logger.Error("invalid request line", zap.Error(err))
		return protocol.ParseError(err)
	}

	correlationID, err := s.ids.NewID()
	if err != nil {
		s.logger.Warn("correlation id unavailable", zap.Error(err))
	}
	log := s.logger.With(
		zap.String("correlation_id", correlationID),
		zap.String("type", req.Type),
	)
	log.Debug("request received", zap.String("tool", req.Tool))

	switch req.Type {
	case protocol.TypePing:
		return protocol.NewPong(req.ID, s.clock.Now())
	case protocol.TypeListTools:
		return protocol.NewToolsList(req.ID, s.registry.Infos())
	case protocol.TypeTool:
		tool, ok := s.registry.Lookup(req.Tool)
		if !ok {
			log.Warn("unknown tool", zap.String("tool", req.Tool))
			return protocol.UnknownTool(req.ID, req.Tool)
		}
		result := s.invoke(ctx, tool, req.ParamsOrEmpty(), log.With(zap.String("tool", req.Tool)))
		return protocol.NewToolResponse(req.ID, req.Tool, result)
	default:
		log.Warn("unknown request type")
		return protocol.UnknownRequestType(req.ID, req.Type)
	}
}

// invoke runs a tool handler, converting a panic into a failure result.
func (s *Server) invoke(ctx context.Context, tool tools.Tool, params json.RawMessage, log *zap.Logger) (result any) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("tool panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = tools.ErrorResult{Success: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
		outcome := "success"
		if _, failed := result.(tools.ErrorResult); failed {
			outcome = "error"
		}
		elapsed := time.Since(start)
		metrics.ObserveToolCall(string(tool.Name), outcome, elapsed)
		log.Debug("tool finished", zap.String("outcome", outcome), zap.Duration("duration", elapsed))
	}()
	return tool.Handler(ctx, params)
}

// emit writes one response line. A value that cannot be encoded is replaced
// by an INTERNAL_ERROR response so the client still gets an answer.
func (s *Server) emit(v any) error {
	line, err := encodeLine(v)
	if err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
		if line, err = encodeLine(protocol.NewErrorResponse(nil, protocol.CodeInternal, err.Error())); err != nil {
			return err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(line); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func encodeLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return buf.Bytes(), nil
}
