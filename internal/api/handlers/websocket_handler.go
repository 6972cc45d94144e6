package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	ws "github.com/isdelr/alumni-portal-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades authenticated requests to a notification stream.
type WebSocketHandler struct {
	hub      *ws.Hub
	tokens   *auth.TokenManager
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Browser connections
// are accepted only from allowedOrigins; an empty list allows any origin.
func NewWebSocketHandler(hub *ws.Hub, tokens *auth.TokenManager, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), u.Scheme+"://"+u.Host) {
				return true
			}
		}
		return false
	}
}

// Serve handles the WebSocket connection request. Browsers cannot set an
// Authorization header on the handshake, so a token query parameter is
// accepted as well as the header and cookie.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	p, err := h.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, p.Email)
	if !h.hub.Join(client) {
		conn.Close()
		return
	}
	log.Debug().Str("email", p.Email).Msg("Websocket client connected")

	go client.WritePump()
	go client.ReadPump()
}

func (h *WebSocketHandler) authenticate(r *http.Request) (auth.Principal, error) {
	if auth.TokenFromRequest(r) != "" {
		return h.tokens.Authenticate(r)
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		return auth.Principal{}, apperr.New(apperr.CodeUnauthorized, "Missing auth token")
	}
	p, err := h.tokens.Validate(token)
	if err != nil {
		return auth.Principal{}, apperr.Wrap(apperr.CodeUnauthorized, "Invalid auth token", err)
	}
	return p, nil
}
