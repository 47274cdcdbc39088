package api

import (
	"log"
	"net/http"

	"github.com/flightyield/seatcast/internal/chart"
	"github.com/flightyield/seatcast/internal/models"
)

// handleCard serves the PNG share card for a flight. Cards render from the
// stored run and are cached briefly so link crawlers hitting the same
// flight don't redraw it on every request.
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	route, date, err := parseFlightParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	key := models.RunKey(route, date)

	if s.cards != nil {
		if data, ok := s.cards.Get(key); ok {
			serveCard(w, data)
			return
		}
	}

	run, err := s.store.GetForecastRun(route, date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}

	data, err := chart.Render(run)
	if err != nil {
		log.Printf("api: render card %s: %v", key, err)
		http.Error(w, "card rendering failed", http.StatusInternalServerError)
		return
	}
	if s.cards != nil {
		s.cards.Put(key, data)
	}
	serveCard(w, data)
}

func serveCard(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
