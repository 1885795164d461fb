// Package backendtest provides an in-process fake of the Workers AI REST
// API for tests.
//
// Tests queue canned replies per model, point the REST transport at an
// httptest.Server wrapping the fake, and inspect the requests it recorded
// afterwards:
//
//	fake := backendtest.New()
//	fake.Reply("@cf/meta/llama", backendtest.Reply{Result: map[string]any{"response": "hi"}})
//	srv := httptest.NewServer(fake)
//	defer srv.Close()
package backendtest

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Reply is one canned answer. Exactly one of Result, Events, Body or Error
// is normally set.
type Reply struct {
	// Status defaults to 200, or 400 when Error is set.
	Status int

	// Result is wrapped in the REST envelope {"result": ..., "success": true}.
	Result any

	// Events are written as server-sent event payloads followed by
	// "data: [DONE]" unless NoDone is set.
	Events []string
	NoDone bool

	// Body is written verbatim with ContentType.
	Body        []byte
	ContentType string

	// Error is marshaled as the response body.
	Error any
}

// Request is a recorded call.
type Request struct {
	Account string
	Gateway string
	Model   string
	Query   url.Values
	Header  http.Header
	Inputs  map[string]any
}

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	router chi.Router

	mu       sync.Mutex
	replies  map[string][]Reply
	requests []Request
}

// New creates a Server with its routes wired up.
func New() *Server {
	s := &Server{replies: make(map[string][]Reply)}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()

	// Recoverer turns handler panics into a 500 instead of killing the
	// test binary.
	r.Use(middleware.Recoverer)

	// Direct REST route and the AI Gateway route. Model ids contain
	// slashes, so they are captured by the trailing wildcard.
	r.Post("/accounts/{account}/ai/run/*", s.handleRun)
	r.Post("/{account}/{gateway}/workers-ai/*", s.handleRun)

	s.router = r
}

// Reply queues replies for model. Replies are consumed in order; the last
// one is sticky and answers every further call.
func (s *Server) Reply(model string, replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[model] = append(s.replies[model], replies...)
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// next records req and pops the reply for its model.
func (s *Server) next(req Request) (Reply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	queue := s.replies[req.Model]
	if len(queue) == 0 {
		return Reply{}, false
	}
	reply := queue[0]
	if len(queue) > 1 {
		s.replies[req.Model] = queue[1:]
	}
	return reply, true
}

// ServeHTTP delegates to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
