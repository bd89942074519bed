package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/emoaid/backend/internal/handler/chat"
	"github.com/zhouzirui/emoaid/backend/internal/handler/letter"
	"github.com/zhouzirui/emoaid/backend/internal/handler/persona"
	"github.com/zhouzirui/emoaid/backend/internal/handler/speech"
	"github.com/zhouzirui/emoaid/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/emoaid/backend/internal/middleware"
	personaModel "github.com/zhouzirui/emoaid/backend/internal/model/persona"
	chatService "github.com/zhouzirui/emoaid/backend/internal/service/chat"
	letterService "github.com/zhouzirui/emoaid/backend/internal/service/letter"
	speechService "github.com/zhouzirui/emoaid/backend/internal/service/speech"
)

// Dependencies are the services exposed over HTTP. Transcriber and
// Synthesizer may be nil when the corresponding feature is disabled.
// CallTimeout bounds the standalone speech endpoints.
type Dependencies struct {
	Personas       personaModel.Store
	Chat           *chatService.Service
	Turns          chat.TurnRunner
	Letters        *letterService.Service
	Transcriber    speechService.Transcriber
	Synthesizer    speechService.Synthesizer
	CallTimeout    time.Duration
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.NewCORS(deps.AllowedOrigins))

	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Chat, deps.Personas, deps.Turns)
	streamHandler := stream.New(deps.Turns)
	speechHandler := speech.New(deps.Transcriber, deps.Synthesizer, deps.Chat, deps.CallTimeout)
	wsHandler := speech.NewWebSocketHandler(deps.Turns, deps.Chat, deps.Personas)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api, wsHandler.RegisterSessionRoutes)
		streamHandler.RegisterRoutes(api)
		speechHandler.RegisterRoutes(api)

		if deps.Letters != nil {
			letter.New(deps.Letters).RegisterRoutes(api)
		}
	})

	return r
}
