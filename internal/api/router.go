package api

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/alumni-portal-be/internal/api/handlers"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/ratelimit"
	"github.com/isdelr/alumni-portal-be/internal/services"
	"github.com/isdelr/alumni-portal-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Tokens       *auth.TokenManager
	Hub          *websocket.Hub
	Limiter      ratelimit.Limiter
	Store        handlers.Pinger
	Stats        handlers.StatsSource
	Accounts     services.AccountServiceProvider
	Jobs         services.JobServiceProvider
	Applications services.ApplicationServiceProvider
	Profiles     services.ProfileServiceProvider
	Events       services.EventServiceProvider
	CORSOrigins  []string
	SecureCookie bool

	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []*net.IPNet
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(realIP(d.TrustedProxies))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	accountHandler := handlers.NewAccountHandler(d.Accounts, d.SecureCookie)
	jobHandler := handlers.NewJobHandler(d.Jobs)
	applicationHandler := handlers.NewApplicationHandler(d.Applications)
	profileHandler := handlers.NewProfileHandler(d.Profiles)
	eventHandler := handlers.NewEventHandler(d.Events)
	healthHandler := handlers.NewHealthHandler(d.Store, d.Stats)
	wsHandler := handlers.NewWebSocketHandler(d.Hub, d.Tokens, d.CORSOrigins)

	limit := func(name string) func(http.Handler) http.Handler {
		return ratelimit.Middleware(d.Limiter, name, authRateLimit, authRateWindow)
	}

	r.Get("/health", healthHandler.Live)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.With(limit("register")).Post("/register", accountHandler.Register)
		r.With(limit("login")).Post("/login", accountHandler.Login)
		r.With(limit("forgot-password")).Post("/forgot-password", accountHandler.ForgotPassword)
		r.With(limit("reset-password")).Post("/reset-password", accountHandler.ResetPassword)
		r.Get("/jobs", jobHandler.GetAll)
		r.Get("/jobs/{id}", jobHandler.Get)

		// The websocket handshake authenticates itself to accept ?token=.
		r.Get("/ws", wsHandler.Serve)

		// Protected routes; role checks happen in the services.
		r.Group(func(r chi.Router) {
			r.Use(d.Tokens.Middleware)

			r.Get("/dashboard", accountHandler.Dashboard)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/", accountHandler.ListAccounts)
				r.Get("/alumni", accountHandler.ListAlumni)
				r.Post("/verify/{alumni_id}", accountHandler.VerifyAlumni)
				r.Post("/employer", accountHandler.CreateEmployer)
				r.Get("/events", eventHandler.GetRecent)
				r.Get("/health", healthHandler.System)
				r.Post("/job", jobHandler.Create)
				r.Delete("/job/{id}", jobHandler.Delete)
			})

			r.Route("/employer", func(r chi.Router) {
				r.Get("/jobs", jobHandler.GetMine)
				r.Get("/job_stats", jobHandler.Stats)
				r.Get("/applications/{job_id}", applicationHandler.GetForJob)
				r.Put("/application/{id}/status", applicationHandler.UpdateStatus)
			})

			r.Route("/user", func(r chi.Router) {
				r.Post("/apply", applicationHandler.Apply)
				r.Get("/applications", applicationHandler.GetMine)
				r.Get("/profile", profileHandler.Get)
				r.Put("/profile", profileHandler.Update)
			})
		})
	})

	return r
}

// realIP applies chi's RealIP only to requests arriving from a trusted proxy.
// Anyone else is identified by the peer address, which the rate limiter keys on.
func realIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		forwarded := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fromTrustedProxy(r.RemoteAddr, trusted) {
				forwarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fromTrustedProxy(remoteAddr string, trusted []*net.IPNet) bool {
	if len(trusted) == 0 {
		return false
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// requestLogger logs each request through zerolog once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}
