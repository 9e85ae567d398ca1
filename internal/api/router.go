package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"anomidate/internal/accounts"
	"anomidate/internal/auth"
	"anomidate/internal/config"
	"anomidate/internal/constants"
	"anomidate/internal/db"
	"anomidate/internal/matching"
	"anomidate/internal/messaging"
	"anomidate/internal/moderation"
	"anomidate/internal/roblox"
	"anomidate/internal/verification"
	"anomidate/internal/views"
	"anomidate/internal/ws"
)

// AvatarResolver turns a Roblox user id into a headshot URL, or "" when none
// is available.
type AvatarResolver interface {
	AvatarURL(ctx context.Context, externalID int64) string
}

// Pinger is an optional dependency reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP layer is built on.
type Deps struct {
	DB           *db.DB
	Views        *views.Renderer
	Accounts     *accounts.Service
	Verification *verification.Service
	Matching     *matching.Engine
	Messaging    *messaging.Service
	Moderation   *moderation.Service
	Avatars      AvatarResolver
	OAuth        *roblox.OAuthProvider
	Sessions     *auth.SessionService
	States       *auth.StateSigner
	Hub          *ws.Hub
	Cache        Pinger
}

type Server struct {
	router       *chi.Mux
	config       *config.Config
	views        *views.Renderer
	db           *db.DB
	users        *db.UserRepository
	accounts     *accounts.Service
	verification *verification.Service
	matching     *matching.Engine
	messaging    *messaging.Service
	moderation   *moderation.Service
	avatars      AvatarResolver
	oauth        *roblox.OAuthProvider
	sessions     *auth.SessionService
	states       *auth.StateSigner
	hub          *ws.Hub
	cache        Pinger
	ipResolver   *ClientIPResolver
	now          func() time.Time
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	ipResolver, err := NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("configuring trusted proxies: %w", err)
	}

	s := &Server{
		config:       cfg,
		views:        deps.Views,
		db:           deps.DB,
		users:        db.NewUserRepository(deps.DB),
		accounts:     deps.Accounts,
		verification: deps.Verification,
		matching:     deps.Matching,
		messaging:    deps.Messaging,
		moderation:   deps.Moderation,
		avatars:      deps.Avatars,
		oauth:        deps.OAuth,
		sessions:     deps.Sessions,
		states:       deps.States,
		hub:          deps.Hub,
		cache:        deps.Cache,
		ipResolver:   ipResolver,
		now:          time.Now,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *chi.Mux {
	authLimiter := NewRateLimiter(s.config.RateLimits.AuthPerMinute, time.Minute)
	resetLimiter := NewRateLimiter(5, time.Minute)
	verifyLimiter := NewRateLimiter(10, time.Minute)
	adminLimiter := NewRateLimiter(5, time.Minute)
	wsUpgradeLimiter := NewRateLimiter(10, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.clientIPMiddleware)
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeadersMiddleware)
	r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

	r.Get("/health", s.health)
	r.Handle("/static/*", http.StripPrefix("/static/", views.Static()))
	r.Get("/welcome", s.welcome)

	r.Group(func(r chi.Router) {
		r.Use(s.loadUser)

		r.Get("/", s.home)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", s.loginPage)
			r.With(s.limitPages(authLimiter)).Post("/login", s.login)
			r.Get("/register", s.registerPage)
			r.With(s.limitPages(authLimiter)).Post("/register", s.register)
			r.Post("/logout", s.logout)
			r.Get("/forgot", s.forgotPage)
			r.With(s.limitPages(resetLimiter)).Post("/forgot", s.forgot)
			r.Get("/reset", s.resetPage)
			r.With(s.limitPages(resetLimiter)).Post("/reset", s.reset)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/profile/verify", s.verifyPage)
			r.With(s.limitPages(verifyLimiter)).Post("/profile/verify", s.verify)
			r.Get("/profile/verify/oauth", s.oauthStart)
			r.Get("/profile/verify/oauth/callback", s.oauthCallback)

			r.Group(func(r chi.Router) {
				r.Use(s.requireVerified)

				r.Get("/profile", s.ownProfile)
				r.Get("/profile/edit", s.editProfilePage)
				r.Post("/profile/edit", s.editProfile)
				r.Get("/profile/{id}", s.profile)

				r.Get("/swipe", s.swipePage)
				r.Post("/swipe/{id}/{action}", s.decide)
				r.Get("/matches", s.matchesPage)

				r.Get("/messages/{id}", s.conversationPage)
				r.Post("/messages/{id}", s.sendMessage)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.loadOperator)

		r.Get("/login", s.adminLoginPage)
		r.With(s.limitPages(adminLimiter)).Post("/login", s.adminLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireOperator)

			r.Get("/", s.adminDashboard)
			r.Post("/logout", s.adminLogout)
			r.Get("/users", s.adminUsers)
			r.Get("/users/{id}", s.adminUser)
			r.Post("/users/{id}/ban", s.adminBan)
			r.Post("/users/{id}/unban", s.adminUnban)
			r.Post("/users/{id}/suspend", s.adminSuspend)
			r.Post("/users/{id}/unsuspend", s.adminUnsuspend)
			r.Post("/users/{id}/unmatch", s.adminUnmatch)
			r.Post("/users/{id}/conversation/delete", s.adminDeleteConversation)
			r.Post("/users/{id}/delete", s.adminDeleteUser)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.Server.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(httprate.Limit(
			s.config.RateLimits.APIPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
				return clientIP(r), nil
			}),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "Too many requests, please try again later")
			}),
		))
		r.Use(s.loadUser)

		r.Get("/server/info", s.serverInfo)

		r.Group(func(r chi.Router) {
			r.Use(s.apiRequireUser)
			r.Get("/me", s.apiMe)

			r.Group(func(r chi.Router) {
				r.Use(s.apiRequireVerified)
				r.Get("/swipe/next", s.apiNextCandidate)
				r.Post("/swipe", s.apiDecide)
				r.Get("/matches", s.apiMatches)
				r.Get("/messages/{id}", s.apiConversation)
				r.Post("/messages/{id}", s.apiSendMessage)
			})
		})
	})

	r.With(limitJSON(wsUpgradeLimiter), s.loadUser).Get("/ws", s.serveWS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "That page does not exist.")
	})

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Shutdown() {
	s.hub.Shutdown()
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// Avatars are hotlinked from the Roblox CDN; everything else is same origin.
const contentSecurityPolicy = "default-src 'self'; img-src 'self' https://*.rbxcdn.com; " +
	"connect-src 'self'; style-src 'self'; script-src 'self'; frame-ancestors 'none'; form-action 'self'"

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"component", "api",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", clientIP(r),
			"request_id", requestID(r),
		)
	})
}
