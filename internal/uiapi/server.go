package uiapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/awaistahir/smart-laundry/internal/advisor"
	"github.com/awaistahir/smart-laundry/internal/engine"
	"github.com/awaistahir/smart-laundry/internal/geocode"
)

const Version = "1.0.0"

// Advisor is the part of the advisor the API drives
type Advisor interface {
	Latest() (advisor.Snapshot, bool)
	Subscribe() <-chan advisor.Snapshot
	Unsubscribe(sub <-chan advisor.Snapshot)
	WaitFor(ctx context.Context, gen uint64) (advisor.Snapshot, error)
	Refresh(ctx context.Context) (uint64, error)
	SelectLocation(ctx context.Context, name string) (uint64, error)
	SearchLocation(ctx context.Context, query string) (engine.LocationProfile, uint64, error)
	UpdateAppliance(ctx context.Context, edit engine.ApplianceEdit) (uint64, error)
	SetDryerMode(ctx context.Context, mode engine.DryerMode) (uint64, error)
	SetSolarPriority(ctx context.Context, on bool) (uint64, error)
	Settings(ctx context.Context) (advisor.Settings, error)
	Locations(ctx context.Context) ([]engine.LocationProfile, error)
}

type Server struct {
	adv Advisor
	log zerolog.Logger
}

func NewServer(adv Advisor, log zerolog.Logger) *Server {
	return &Server{
		adv: adv,
		log: log,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS for local development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.With(middleware.Timeout(30 * time.Second)).Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// long lived, outside the request timeout
		r.Get("/advice/stream", s.handleAdviceStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/status", s.handleStatus)
			r.Get("/advice", s.handleGetAdvice)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/locations", s.handleGetLocations)
			r.Put("/location", s.handleSelectLocation)
			r.Post("/locations/search", s.handleSearchLocation)
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handleUpdateSettings)
		})
	})

	return r
}

// requestLogger logs one line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// adviceResponse is a Snapshot with money figures rounded for display
type adviceResponse struct {
	advisor.Snapshot
	CostPerLoadDisplay string `json:"cost_per_load_display"`
	RateDisplay        string `json:"rate_display"`
	SavingsPerLoad     string `json:"savings_per_load"`
}

func newAdviceResponse(s advisor.Snapshot) adviceResponse {
	f := s.Forecast
	return adviceResponse{
		Snapshot:           s,
		CostPerLoadDisplay: engine.FormatMoney(s.CostPerLoad),
		RateDisplay:        decimal.NewFromFloat(f.CurrentPrice).StringFixed(3),
		SavingsPerLoad: engine.FormatMoney(engine.QuotedSavings(
			f.CurrentPrice, f.BestFuturePrice, s.SolarPriority, s.Appliance.SavingsKWh())),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": Version,
	}
	if snap, ok := s.adv.Latest(); ok {
		status["generation"] = snap.Generation
		status["location"] = snap.Location.Name
		status["provider"] = snap.Provider
		status["computed_at"] = snap.ComputedAt
		status["history"] = snap.Forecast.History
	} else {
		status["history"] = engine.FlatHistory()
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetAdvice(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.adv.Latest()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "advice not computed yet")
		return
	}
	respondJSON(w, http.StatusOK, newAdviceResponse(snap))
}

// handleAdviceStream sends every published snapshot as a server-sent event
func (s *Server) handleAdviceStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := s.adv.Subscribe()
	defer s.adv.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(newAdviceResponse(snap))
			if err != nil {
				s.log.Error().Err(err).Msg("encoding advice event")
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: advice\ndata: %s\n\n", snap.Generation, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// respondAfter waits for generation gen and writes its snapshot
func (s *Server) respondAfter(w http.ResponseWriter, r *http.Request, gen uint64) {
	snap, err := s.adv.WaitFor(r.Context(), gen)
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newAdviceResponse(snap))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	gen, err := s.adv.Refresh(r.Context())
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}
	s.respondAfter(w, r, gen)
}

func (s *Server) handleGetLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.adv.Locations(r.Context())
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, locs)
}

func (s *Server) handleSelectLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	gen, err := s.adv.SelectLocation(r.Context(), req.Name)
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}
	s.respondAfter(w, r, gen)
}

func (s *Server) handleSearchLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc, gen, err := s.adv.SearchLocation(r.Context(), req.Query)
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}

	snap, err := s.adv.WaitFor(r.Context(), gen)
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"location": loc,
		"advice":   newAdviceResponse(snap),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.adv.Settings(r.Context())
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// settingsRequest carries the raw energy fields as strings so bad input is
// rejected by the same parser the settings form uses
type settingsRequest struct {
	engine.ApplianceEdit
	DryerMode     *engine.DryerMode `json:"dryer_mode,omitempty"`
	SolarPriority *bool             `json:"solar_priority,omitempty"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if req.DryerMode != nil && !req.DryerMode.Valid() {
		s.respondAdvisorError(w, engine.ErrInvalidConfiguration)
		return
	}

	gen, err := s.adv.UpdateAppliance(ctx, req.ApplianceEdit)
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}
	if req.DryerMode != nil {
		if gen, err = s.adv.SetDryerMode(ctx, *req.DryerMode); err != nil {
			s.respondAdvisorError(w, err)
			return
		}
	}
	if req.SolarPriority != nil {
		if gen, err = s.adv.SetSolarPriority(ctx, *req.SolarPriority); err != nil {
			s.respondAdvisorError(w, err)
			return
		}
	}

	st, err := s.adv.Settings(ctx)
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}
	snap, err := s.adv.WaitFor(ctx, gen)
	if err != nil {
		s.respondAdvisorError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"settings": st,
		"advice":   newAdviceResponse(snap),
	})
}

func (s *Server) respondAdvisorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidConfiguration):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, advisor.ErrUnknownLocation), errors.Is(err, geocode.ErrLocationNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, advisor.ErrEmptyQuery):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, advisor.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
