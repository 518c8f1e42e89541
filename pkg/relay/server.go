package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/campusgrid/campusgrid/pkg/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server exposes the relay hub over a WebSocket endpoint plus health
// and status endpoints.
type Server struct {
	hub    *Hub
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewServerOptions struct {
	Port int
	TLS  *TLSConfig
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewServer(opts NewServerOptions) *Server {
	hub := NewHub()

	router := mux.NewRouter()
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("Failed to upgrade to WebSocket: %v", err)
			return
		}
		log.Debug("New WebSocket connection from %s", conn.RemoteAddr().String())

		client := newClient(hub, conn)
		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}
		go client.writePump()
		go client.readPump()
	})
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)

	return &Server{
		hub: hub,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", opts.Port),
			Handler: router,
		},
		tls: opts.TLS,
	}
}

// Start runs the hub and the HTTP server until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	go func() {
		<-ctx.Done()
		s.server.Shutdown(context.Background())
	}()

	var err error
	if s.tls != nil {
		log.Info("Relay server listening on %s with TLS", s.server.Addr)
		err = s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
	} else {
		log.Info("Relay server listening on %s", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %v", err)
	}

	return nil
}
