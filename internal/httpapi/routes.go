package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/pong-matchmaking/internal/auth"
	"github.com/DoyleJ11/pong-matchmaking/internal/bus"
	"github.com/DoyleJ11/pong-matchmaking/internal/matchmaking"
	"github.com/DoyleJ11/pong-matchmaking/internal/session"
	"github.com/DoyleJ11/pong-matchmaking/internal/ws"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps is everything the router hands to its handlers.
type Deps struct {
	Bus        bus.Bus
	Gate       *auth.Gate
	Verifier   auth.Verifier
	Random     matchmaking.Queue
	Tournament matchmaking.Queue
	Registry   *session.Registry
	WS         ws.Options
	Logger     *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(d.Logger))

	r.Get("/healthz", Healthz)
	r.Get("/stats", Stats(d))

	r.Route("/ws", func(r chi.Router) {
		r.Get("/random", ws.WaitingHandler(d.Gate, d.Random, d.WS, d.Logger.Named("random")))
		r.Get("/tournament", ws.WaitingHandler(d.Gate, d.Tournament, d.WS, d.Logger.Named("tournament")))
		r.Get("/game/{room_id}", ws.SessionHandler(d.Registry, d.Verifier, d.WS, d.Logger.Named("session")))
	})
	return r
}
