package server

import (
	"io"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/esmcp/codec"
	"github.com/esmcp/dispatch"
)

// SessionHeader carries the session id across requests of one logical
// client conversation.
const SessionHeader = "Mcp-Session-Id"

const maxBodySize = 10 * 1024 * 1024

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	// standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/mcp", func(r chi.Router) {
		r.Post("/", s.handlePost)
		r.Delete("/", s.handleDelete)
	})

	return r
}

// handlePost carries one envelope per request body and one envelope per
// response body. The first request of a conversation (the handshake, sent
// without a session header) creates the session and returns its id; every
// later request must present that id. Requests of one session may run
// concurrently over kept-alive connections.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		codec.WriteJSONRPCError(w, codec.ParseError, "unreadable request body: "+err.Error(), nil)
		return
	}

	sid := r.Header.Get(SessionHeader)
	if sid == "" {
		s.handleHandshake(w, r, body)
		return
	}

	sess, ok := s.sessions.get(sid)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		codec.WriteJSONRPCError(w, codec.InvalidRequest, "unknown session", nil)
		return
	}

	resp := s.dispatcher.Handle(r.Context(), sess, body)
	if sess.State() == dispatch.StateClosing {
		// Fatal protocol error inside the dispatcher; drop the session.
		s.sessions.remove(sid)
	}
	writeDispatchResponse(w, resp)
}

// handleHandshake runs the first message of a connection through a fresh
// session. Anything other than a successful initialize leaves no session
// behind, matching the fatal-first-message rule of the stream transport.
func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request, body []byte) {
	sess := s.dispatcher.NewSession()
	resp := s.dispatcher.Handle(r.Context(), sess, body)

	if sess.State() == dispatch.StateReady {
		s.sessions.put(sess)
		w.Header().Set(SessionHeader, sess.ID())
	} else {
		sess.Close()
	}
	writeDispatchResponse(w, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sid := r.Header.Get(SessionHeader)
	if sid == "" || !s.sessions.remove(sid) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeDispatchResponse encodes a dispatch outcome. A nil response
// (notification, or a request abandoned by cancellation) has no body.
func writeDispatchResponse(w http.ResponseWriter, resp *codec.JSONRPCResponse) {
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	codec.WriteJSONRPCResponse(w, resp)
}
