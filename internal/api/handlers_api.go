package api

import (
	"encoding/json"
	"net/http"

	"github.com/flightyield/seatcast/internal/models"
)

func (s *Server) handleAPIFlights(w http.ResponseWriter, r *http.Request) {
	dataset := r.URL.Query().Get("dataset")
	if dataset == "" {
		dataset = models.DatasetForecast
	}
	flights, err := s.store.ListFlights(dataset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(flights)
}

func (s *Server) handleAPITrend(w http.ResponseWriter, r *http.Request) {
	var rows []models.SummaryRow
	var err error
	if route := r.URL.Query().Get("route"); route != "" {
		rows, err = s.store.GetRouteTrend(route)
	} else {
		rows, err = s.store.GetTrend()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

func (s *Server) handleAPIForecast(w http.ResponseWriter, r *http.Request) {
	route, date, err := parseFlightParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	run, err := s.store.GetForecastRun(route, date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "no forecast run for flight", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

func (s *Server) handleAPIAccuracy(w http.ResponseWriter, r *http.Request) {
	data, err := s.getAccuracyData()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
