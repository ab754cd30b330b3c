package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/DoyleJ11/pong-matchmaking/internal/bus"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type StatsResponse struct {
	Unauthenticated   int `json:"unauthenticated"`
	RandomWaiting     int `json:"random_waiting"`
	TournamentWaiting int `json:"tournament_waiting"`
	Rooms             int `json:"rooms"`
}

func Stats(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatsResponse{
			Unauthenticated:   d.Bus.Count(bus.Unauthenticated),
			RandomWaiting:     d.Random.Len(),
			TournamentWaiting: d.Tournament.Len(),
			Rooms:             d.Registry.Count(r.Context()),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// RequestLogger logs one line per request. Websocket requests are logged
// when the connection ends.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
