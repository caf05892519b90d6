package httpapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/hebocon-control/internal/tournament"
	"github.com/DoyleJ11/hebocon-control/internal/types"
	"github.com/DoyleJ11/hebocon-control/internal/ws"
)

type Deps struct {
	Session        *tournament.Session
	Log            *zap.Logger
	AllowedOrigins []string
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Log.Named("http")
	s := d.Session

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Response{Message: "not found", Code: types.CodeNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Message: "method not allowed", Code: types.CodeBadRequest})
	})

	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.Handler(s, d.Log, wsOrigins(d.AllowedOrigins)))

	r.Route("/api", func(r chi.Router) {
		r.Get("/data", GetData(s))
		r.Post("/reset", ResetAll(s))

		r.Get("/robots", ListRobots(s))
		r.Post("/robots", AddRobot(s))
		r.Post("/robots/generate-test-data", GenerateTestRobots(s))
		r.Delete("/robots/{name}", DeleteRobot(s))

		r.Get("/match", GetMatch(s))
		r.Post("/match", SetMatch(s))

		r.Route("/bracket", func(r chi.Router) {
			r.Get("/", GetBracket(s))
			r.Get("/next", NextMatch(s))
			r.Post("/create", CreateBracket(s))
			r.Post("/assign", AssignRobots(s))
			r.Post("/position", AssignPosition(s))
			r.Post("/start", StartTournament(s))
			r.Post("/advance", AdvanceWinner(s))
			r.Post("/undo", UndoMatch(s))
			r.Post("/reset", ResetBracket(s))
		})

		r.Get("/timer", GetTimer(s))
		r.Post("/timer/start", StartTimer(s))
		r.Post("/timer/stop", StopTimer(s))
		r.Post("/timer/reset", ResetTimer(s))

		r.Get("/overlay/mode", GetOverlayMode(s))
		r.Post("/overlay/mode", SetOverlayMode(s))
		r.Post("/winner/show", ShowWinner(s))
		r.Post("/winner/hide", HideWinner(s))
		r.Post("/settings", SaveSettings(s))
	})
	return r
}

// wsOrigins turns the CORS origin list into websocket origin patterns (host only).
func wsOrigins(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
