package api

import (
	"context"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flightyield/seatcast/internal/chart"
	"github.com/flightyield/seatcast/internal/insight"
	"github.com/flightyield/seatcast/internal/store"
)

type Server struct {
	store    *store.Store
	compiler *insight.Compiler
	cards    *chart.Cache
	port     string
	loc      *time.Location
	tmpl     *template.Template
}

func NewServer(store *store.Store, port string, loc *time.Location) *Server {
	cards, err := chart.NewCache()
	if err != nil {
		log.Printf("api: card cache disabled: %v", err)
	}
	return &Server{
		store: store,
		cards: cards,
		port:  port,
		loc:   loc,
		tmpl:  newTemplates(),
	}
}

// SetCompiler wires the narrative compiler. Without one, flight pages
// render without narratives.
func (s *Server) SetCompiler(c *insight.Compiler) {
	s.compiler = c
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/flight", s.handleFlight)
	mux.HandleFunc("/accuracy", s.handleAccuracy)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/card", s.handleCard)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/flights", s.handleAPIFlights)
	mux.HandleFunc("/api/trend", s.handleAPITrend)
	mux.HandleFunc("/api/forecast", s.handleAPIForecast)
	mux.HandleFunc("/api/accuracy", s.handleAPIAccuracy)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
