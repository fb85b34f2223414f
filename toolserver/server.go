// Package toolserver implements the tool server actor (C6): an in-process
// actor that owns a tool.Set and serves add/remove/list/call requests over a
// message channel, exactly as rig-core/src/tool/server.rs structures it,
// adapted from Rust's mpsc channel + spawned task onto a Go goroutine +
// channel of one-shot-reply requests.
package toolserver

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"

	"github.com/agentflow-go/agentflow/logging"
	"github.com/agentflow-go/agentflow/tool"
)

// DynamicSource is the vector-store-backed dynamic tool lookup the actor
// queries on GetToolDefs when a prompt is supplied. It mirrors §6.2's
// VectorStoreIndexDyn, restricted to the id-returning half the tool server
// needs (top_n_ids).
type DynamicSource interface {
	TopNIDs(ctx context.Context, query string, sampleCount int) ([]string, error)
}

type dynamicEntry struct {
	sampleCount int
	source      DynamicSource
}

// request is one message sent over the actor's channel. Exactly one of the
// payload fields is meaningful per kind, mirroring §4.6's message list.
type request struct {
	kind     requestKind
	tool     tool.Dyn
	toolset  *tool.Set
	name     string
	argsJSON string
	prompt   *string
	reply    chan result
}

type requestKind int

const (
	kindAddTool requestKind = iota
	kindAppendToolset
	kindRemoveTool
	kindCallTool
	kindGetToolDefs
	kindStop
)

type result struct {
	value any
	err   error
}

// Server is the running tool server actor's handle. The zero value is not
// usable; construct with New.
type Server struct {
	reqCh chan request
	done  chan struct{}
}

// New starts a tool server actor owning the given initial tools and dynamic
// sources, and returns its handle. The actor stops when ctx is cancelled.
func New(ctx context.Context, initial *tool.Set, dynamic []DynamicEntrySpec, concurrency int, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	if initial == nil {
		initial = tool.NewSet()
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	s := &Server{
		reqCh: make(chan request, 64),
		done:  make(chan struct{}),
	}

	entries := make([]dynamicEntry, 0, len(dynamic))
	for _, d := range dynamic {
		entries = append(entries, dynamicEntry{sampleCount: d.SampleCount, source: d.Source})
	}

	sem := semaphore.NewWeighted(int64(concurrency))

	go s.run(ctx, initial, entries, sem, logger)
	return s
}

// DynamicEntrySpec is one (sample-count, dynamic-source) pair, as named in
// §3's Agent field list.
type DynamicEntrySpec struct {
	SampleCount int
	Source      DynamicSource
}

func (s *Server) run(ctx context.Context, toolset *tool.Set, dynamic []dynamicEntry, sem *semaphore.Weighted, logger logging.Logger) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.reqCh:
			switch req.kind {
			case kindStop:
				req.reply <- result{}
				return
			case kindAddTool:
				toolset.Add(req.tool)
				req.reply <- result{value: "added"}
			case kindAppendToolset:
				toolset.Merge(req.toolset)
				req.reply <- result{value: "added"}
			case kindRemoveTool:
				toolset.Remove(req.name)
				req.reply <- result{value: "deleted"}
			case kindGetToolDefs:
				defs := s.resolveDefs(ctx, toolset, dynamic, req.prompt, logger)
				req.reply <- result{value: defs}
			case kindCallTool:
				// Dispatch concurrently: acquire a semaphore slot and run the
				// call in its own goroutine so the actor loop immediately
				// continues to the next message, allowing overlapping
				// CallTool executions under the registry's effective
				// read-lock concurrency (§4.6, §5, invariant 11).
				t, ok := toolset.Get(req.name)
				if !ok {
					req.reply <- result{err: &tool.ErrNotFound{Name: req.name}}
					continue
				}
				go func(t tool.Dyn, argsJSON string, reply chan result) {
					if err := sem.Acquire(ctx, 1); err != nil {
						reply <- result{err: err}
						return
					}
					defer sem.Release(1)

					logger.Debug(ctx, "calling tool", logging.F("name", t.Name()), logging.FJSON("args", argsJSON))

					out, err := t.CallJSON(ctx, argsJSON)
					if err != nil {
						reply <- result{err: err}
						return
					}
					logger.Debug(ctx, "tool call finished", logging.F("name", t.Name()), logging.FJSON("result", out))
					reply <- result{value: out}
				}(t, req.argsJSON, req.reply)
			}
		}
	}
}

func (s *Server) resolveDefs(ctx context.Context, toolset *tool.Set, dynamic []dynamicEntry, prompt *string, logger logging.Logger) []tool.Definition {
	defs := toolset.Definitions()
	if prompt == nil {
		return defs
	}

	for _, d := range dynamic {
		ids, err := d.source.TopNIDs(ctx, *prompt, d.sampleCount)
		if err != nil {
			logger.Warn(ctx, "dynamic tool source query failed", logging.F("error", err.Error()))
			continue
		}
		for _, id := range ids {
			t, ok := toolset.Get(id)
			if !ok {
				logger.Warn(ctx, "dynamic tool index returned an id not present in toolset", logging.F("tool_id", id))
				continue
			}
			defs = append(defs, t.Definition())
		}
	}
	return defs
}

// AddTool registers a tool.
func (s *Server) AddTool(ctx context.Context, t tool.Dyn) error {
	_, err := s.send(ctx, request{kind: kindAddTool, tool: t})
	return err
}

// AppendToolset merges an entire tool.Set into the registry.
func (s *Server) AppendToolset(ctx context.Context, toolset *tool.Set) error {
	_, err := s.send(ctx, request{kind: kindAppendToolset, toolset: toolset})
	return err
}

// RemoveTool deletes a tool by name.
func (s *Server) RemoveTool(ctx context.Context, name string) error {
	_, err := s.send(ctx, request{kind: kindRemoveTool, name: name})
	return err
}

// CallTool invokes a registered tool with raw JSON arguments.
func (s *Server) CallTool(ctx context.Context, name, argsJSON string) (string, error) {
	v, err := s.send(ctx, request{kind: kindCallTool, name: name, argsJSON: argsJSON})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetToolDefs returns every static tool's definition, plus (if prompt is
// non-nil) definitions resolved from every registered dynamic source.
func (s *Server) GetToolDefs(ctx context.Context, prompt *string) ([]tool.Definition, error) {
	v, err := s.send(ctx, request{kind: kindGetToolDefs, prompt: prompt})
	if err != nil {
		return nil, err
	}
	return v.([]tool.Definition), nil
}

// Stop terminates the actor. Further calls return an error.
func (s *Server) Stop(ctx context.Context) error {
	_, err := s.send(ctx, request{kind: kindStop})
	return err
}

func (s *Server) send(ctx context.Context, req request) (any, error) {
	req.reply = make(chan result, 1)
	errStopped := errors.New("toolserver: server stopped")
	select {
	case <-s.done:
		return nil, errStopped
	default:
	}
	select {
	case s.reqCh <- req:
	case <-s.done:
		return nil, errStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-s.done:
		select {
		case res := <-req.reply:
			return res.value, res.err
		default:
			return nil, errStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
