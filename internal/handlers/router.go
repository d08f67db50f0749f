package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/middleware"
	"github.com/huddle/backend/internal/services"
)

// Services is everything the router dispatches to.
type Services struct {
	Accounts  *services.AccountService
	Profiles  *services.ProfileService
	Friends   *services.FriendService
	Events    *services.EventService
	Chat      *services.ChatService
	Addresses *services.AddressService
	Avatars   *services.AvatarService
	Maps      *services.MapService
}

type RouterConfig struct {
	Verifiers []middleware.Verifier
	// UploadDir is served at /uploads/ when set.
	UploadDir string
}

func NewRouter(svc Services, cfg RouterConfig, log *zap.Logger) http.Handler {
	log = logger.OrNop(log)

	authHandler := NewAuthHandler(svc.Accounts, log)
	profileHandler := NewProfileHandler(svc.Profiles, log)
	friendHandler := NewFriendHandler(svc.Friends, log)
	eventHandler := NewEventHandler(svc.Events, log)
	chatHandler := NewChatHandler(svc.Chat, log)
	addressHandler := NewAddressHandler(svc.Addresses, log)
	avatarHandler := NewAvatarHandler(svc.Avatars, svc.Profiles, log)
	mapHandler := NewMapHandler(svc.Maps, log)

	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authHandler.SignUp)
		r.Post("/auth/signin", authHandler.SignIn)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(log, cfg.Verifiers...))

			r.Post("/auth/signout", authHandler.SignOut)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", profileHandler.GetMe)
				r.Put("/", profileHandler.UpdateMe)
				r.Post("/avatar", avatarHandler.Upload)
				r.Delete("/avatar", avatarHandler.Remove)
			})

			r.Get("/profiles", profileHandler.Search)
			r.Get("/profiles/{profileId}", profileHandler.GetProfile)

			r.Route("/friends", func(r chi.Router) {
				r.Get("/", friendHandler.List)
				r.Post("/requests", friendHandler.SendRequest)
				r.Post("/requests/{requestId}/accept", friendHandler.Accept)
				r.Post("/requests/{requestId}/decline", friendHandler.Decline)
				r.Delete("/requests/{requestId}", friendHandler.Cancel)
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", eventHandler.List)
				r.Post("/", eventHandler.Create)

				r.Route("/{eventId}", func(r chi.Router) {
					r.Get("/", eventHandler.Get)
					r.Delete("/", eventHandler.Delete)
					r.Post("/leave", eventHandler.Leave)
					r.Post("/poll", eventHandler.Vote)
					r.Post("/invitation", eventHandler.RespondInvitation)
					r.Get("/chat", chatHandler.History)
					r.Post("/chat", chatHandler.Send)
				})
			})

			r.Post("/addresses/validate", addressHandler.Validate)
			r.Get("/map/pins", mapHandler.Pins)
		})
	})

	if cfg.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	return r
}
