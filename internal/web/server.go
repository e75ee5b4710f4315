// Package web exposes the browse service over HTTP: a JSON API for the
// stream, item details, tags, and maintenance operations, plus a WebSocket
// feed that pushes stream snapshots as they change.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/roasbeef/marquee/internal/baselib/actor"
	"github.com/roasbeef/marquee/internal/browse"
	"github.com/roasbeef/marquee/internal/stream"
)

// BrowseRef is the actor reference the server drives all operations through.
type BrowseRef = actor.ActorRef[browse.BrowseRequest, browse.BrowseResponse]

// Server is the HTTP server for the marquee API.
type Server struct {
	browse BrowseRef
	hub    *Hub
	mux    *http.ServeMux
	srv    *http.Server
	addr   string
}

// Config holds configuration for the web server.
type Config struct {
	Addr string
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr: ":8475",
	}
}

// NewServer creates a new web server over the given browse service ref.
func NewServer(cfg *Config, browseRef BrowseRef) *Server {
	s := &Server{
		browse: browseRef,
		mux:    http.NewServeMux(),
		addr:   cfg.Addr,
	}

	s.registerAPIRoutes()

	s.hub = NewHub()
	go s.hub.Run()

	s.mux.HandleFunc("/ws", s.handleWebSocket)

	return s
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Infof("Starting web server on %s", s.addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Stop()
	}

	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// PublishSnapshot pushes a stream snapshot to all WebSocket clients. Wire it
// as the stream coordinator's update hook.
func (s *Server) PublishSnapshot(snap stream.Snapshot) {
	s.hub.BroadcastToAll(&WSMessage{
		Type:    WSMsgTypeSnapshot,
		Payload: snapshotView(snap),
	})
}
