// Command mockapi serves canned search and geocoding responses for local
// development. Point SEARCH_BASE_URL and GEOCODER_BASE_URL at it.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

var cannedEvents = []searchItem{
	{
		Title:   "Boston Spring 5K - March 22, 2025",
		Link:    "https://example.com/races/boston-spring-5k",
		Snippet: "Join us for a fast 5K along the Charles River.",
	},
	{
		Title:   "Harbor Half Marathon",
		Link:    "https://example.com/races/harbor-half",
		Snippet: "Race day is 12 April 2025. Half marathon course along the harbor.",
	},
	{
		Title:   "Midnight Trail Run",
		Link:    "https://example.com/races/midnight-trail",
		Snippet: "A 15 km night trail run. Date to be announced.",
	},
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

var cannedPlaces = map[string]place{
	"boston":   {Lat: "42.3601", Lon: "-71.0589", DisplayName: "Boston, Suffolk County, Massachusetts, United States"},
	"new york": {Lat: "40.7128", Lon: "-74.0060", DisplayName: "New York, United States"},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	addr := ":8000"
	if v := os.Getenv("MOCK_API_ADDR"); v != "" {
		addr = v
	}

	log.Info().Str("address", addr).Msg("🚀 Mock search and geocoding API starting")
	log.Info().Msgf("📍 SEARCH_BASE_URL=http://localhost%s GEOCODER_BASE_URL=http://localhost%s", addr, addr)
	if err := http.ListenAndServe(addr, newMux()); err != nil {
		log.Fatal().Err(err).Msg("Mock API failed")
	}
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/customsearch/v1", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") == "" || q.Get("cx") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": map[string]interface{}{"code": 400, "message": "Missing key or cx"},
			})
			return
		}
		log.Info().Str("q", q.Get("q")).Msg("Search request")
		writeJSON(w, http.StatusOK, map[string]interface{}{"items": cannedEvents})
	})

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		query := strings.ToLower(r.URL.Query().Get("q"))
		for name, p := range cannedPlaces {
			if strings.Contains(query, name) {
				writeJSON(w, http.StatusOK, []place{p})
				return
			}
		}
		writeJSON(w, http.StatusOK, []place{})
	})

	mux.HandleFunc("/reverse", func(w http.ResponseWriter, r *http.Request) {
		lat := r.URL.Query().Get("lat")
		for _, p := range cannedPlaces {
			if strings.HasPrefix(lat, p.Lat[:5]) {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"error": "Unable to geocode"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
