//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

// Package api exposes the planning coordinator over HTTP and WebSocket. The
// server is a thin adapter: it parses requests, calls the coordinator and
// maps coordination errors to HTTP status codes. It holds no business logic.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/planloop/planloop-go/log"
	"github.com/planloop/planloop-go/planning"
)

const (
	// defaultKeepAliveInterval is how often the server pings idle
	// websocket connections.
	defaultKeepAliveInterval = 30 * time.Second
	// shutdownTimeout bounds graceful shutdown in Close.
	shutdownTimeout = 10 * time.Second
)

// Server serves the planning REST API and the per-session websocket feed.
type Server struct {
	coordinator *planning.Coordinator
	router      *mux.Router

	allowedOrigins    []string
	checkOrigin       func(r *http.Request) bool
	keepAliveInterval time.Duration

	mu         sync.Mutex
	httpServer *http.Server
}

// Option configures the Server instance.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origin whitelist. Defaults to "*".
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithCheckOrigin sets the websocket origin check. The default accepts
// every origin, matching the CORS default.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		if fn != nil {
			s.checkOrigin = fn
		}
	}
}

// WithKeepAliveInterval sets the websocket ping interval.
func WithKeepAliveInterval(interval time.Duration) Option {
	return func(s *Server) {
		if interval > 0 {
			s.keepAliveInterval = interval
		}
	}
}

// New creates an API server over the given coordinator. The behaviour can
// be tweaked via functional options.
func New(coordinator *planning.Coordinator, opts ...Option) *Server {
	s := &Server{
		coordinator:       coordinator,
		router:            mux.NewRouter(),
		allowedOrigins:    []string{"*"},
		checkOrigin:       func(*http.Request) bool { return true },
		keepAliveInterval: defaultKeepAliveInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{Handler: s.router}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts the HTTP server down gracefully. Websocket connections are
// torn down through their sinks when the coordinator closes.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// registerRoutes sets up the REST and websocket endpoints.
func (s *Server) registerRoutes() {
	s.router.HandleFunc("/planning-sessions",
		s.handleCreateSession).Methods(http.MethodPost)
	s.router.HandleFunc("/planning-sessions/join/{token}",
		s.handleJoinSession).Methods(http.MethodPost)
	s.router.HandleFunc("/planning-sessions/{sessionID}",
		s.handleGetSession).Methods(http.MethodGet)
	s.router.HandleFunc("/planning-sessions/{sessionID}/revoke",
		s.handleRevokeInvite).Methods(http.MethodPost)
	s.router.HandleFunc("/planning-sessions/{sessionID}/finalize",
		s.handleFinalizeSession).Methods(http.MethodPost)
	s.router.HandleFunc("/planning-sessions/{sessionID}/summary",
		s.handleGetSummary).Methods(http.MethodGet)
	s.router.HandleFunc("/planning-sessions/{sessionID}/participants",
		s.handleListParticipants).Methods(http.MethodGet)

	// Venues and votes.
	s.router.HandleFunc("/planning-sessions/{sessionID}/venues",
		s.handleAddVenue).Methods(http.MethodPost)
	s.router.HandleFunc("/planning-sessions/{sessionID}/venues",
		s.handleListVenues).Methods(http.MethodGet)
	s.router.HandleFunc("/planning-sessions/{sessionID}/venues/{venueID}/vote",
		s.handleCastVote).Methods(http.MethodPost)

	// Comments.
	s.router.HandleFunc("/planning-sessions/{sessionID}/venues/{venueID}/comments",
		s.handleAddComment).Methods(http.MethodPost)
	s.router.HandleFunc("/planning-sessions/{sessionID}/venues/{venueID}/comments",
		s.handleListVenueComments).Methods(http.MethodGet)
	s.router.HandleFunc("/planning-sessions/{sessionID}/comments",
		s.handleListParticipantComments).Methods(http.MethodGet)

	// Itinerary.
	s.router.HandleFunc("/planning-sessions/{sessionID}/itinerary",
		s.handleAddItineraryItem).Methods(http.MethodPost)
	s.router.HandleFunc("/planning-sessions/{sessionID}/itinerary",
		s.handleGetItinerary).Methods(http.MethodGet)
	s.router.HandleFunc("/planning-sessions/{sessionID}/itinerary/order",
		s.handleReorderItinerary).Methods(http.MethodPut)
	s.router.HandleFunc("/planning-sessions/{sessionID}/itinerary/{itemID}",
		s.handleRemoveItineraryItem).Methods(http.MethodDelete)

	// Realtime feed.
	s.router.HandleFunc("/planning-sessions/{sessionID}/ws",
		s.handleWebSocket).Methods(http.MethodGet)
}

// ---- Request bodies ------------------------------------------------------

type createSessionRequest struct {
	OrganizerID   string `json:"organizer_id"`
	OrganizerName string `json:"organizer_name,omitempty"`
	Name          string `json:"name"`
	ExpiryHours   int    `json:"expiry_hours,omitempty"`
}

type joinSessionRequest struct {
	DisplayName   string `json:"display_name"`
	ParticipantID string `json:"participant_id,omitempty"`
}

type requesterRequest struct {
	RequesterID string `json:"requester_id"`
}

type addVenueRequest struct {
	PlaceID     string   `json:"place_id,omitempty"`
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	PriceLevel  *int     `json:"price_level,omitempty"`
	PhotoURL    string   `json:"photo_url,omitempty"`
	SuggestedBy string   `json:"suggested_by"`
}

type castVoteRequest struct {
	ParticipantID string            `json:"participant_id"`
	VoteType      planning.VoteType `json:"vote_type"`
}

type addCommentRequest struct {
	ParticipantID string `json:"participant_id"`
	Text          string `json:"text"`
}

type addItineraryItemRequest struct {
	VenueID       string    `json:"venue_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	AddedBy       string    `json:"added_by"`
}

type reorderItineraryRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// ---- Handlers ------------------------------------------------------------

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.coordinator.CreateSession(r.Context(), planning.CreateSessionRequest{
		OrganizerID:   req.OrganizerID,
		OrganizerName: req.OrganizerName,
		Name:          req.Name,
		ExpiryHours:   req.ExpiryHours,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coordinator.GetSession(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	var req joinSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	participant, err := s.coordinator.JoinSession(
		r.Context(), mux.Vars(r)["token"], req.DisplayName, req.ParticipantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, participant)
}

func (s *Server) handleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	var req requesterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.coordinator.RevokeInvite(
		r.Context(), mux.Vars(r)["sessionID"], req.RequesterID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinalizeSession(w http.ResponseWriter, r *http.Request) {
	var req requesterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	summary, err := s.coordinator.FinalizeSession(
		r.Context(), mux.Vars(r)["sessionID"], req.RequesterID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.coordinator.Summary(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := s.coordinator.GetParticipants(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(participants))
}

func (s *Server) handleAddVenue(w http.ResponseWriter, r *http.Request) {
	var req addVenueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	venue, err := s.coordinator.AddVenue(r.Context(), mux.Vars(r)["sessionID"], planning.VenueInput{
		PlaceID:     req.PlaceID,
		Name:        req.Name,
		Address:     req.Address,
		Rating:      req.Rating,
		PriceLevel:  req.PriceLevel,
		PhotoURL:    req.PhotoURL,
		SuggestedBy: req.SuggestedBy,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, venue)
}

func (s *Server) handleListVenues(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	if r.URL.Query().Get("ranked") == "true" {
		ranked, err := s.coordinator.RankVenues(r.Context(), sessionID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, emptyIfNil(ranked))
		return
	}
	venues, err := s.coordinator.GetVenues(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(venues))
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	tally, err := s.coordinator.CastVote(
		r.Context(), vars["sessionID"], vars["venueID"], req.ParticipantID, req.VoteType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tally)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	comment, err := s.coordinator.AddComment(
		r.Context(), vars["sessionID"], vars["venueID"], req.ParticipantID, req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleListVenueComments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	comments, err := s.coordinator.GetComments(r.Context(), vars["sessionID"], vars["venueID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(comments))
}

func (s *Server) handleListParticipantComments(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participant_id")
	if participantID == "" {
		s.writeError(w, planning.NewError(planning.CodeValidation,
			"participant_id query parameter is required"))
		return
	}
	comments, err := s.coordinator.GetParticipantComments(
		r.Context(), mux.Vars(r)["sessionID"], participantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(comments))
}

func (s *Server) handleAddItineraryItem(w http.ResponseWriter, r *http.Request) {
	var req addItineraryItemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	item, err := s.coordinator.AddToItinerary(
		r.Context(), mux.Vars(r)["sessionID"], req.VenueID, req.ScheduledTime, req.AddedBy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItinerary(w http.ResponseWriter, r *http.Request) {
	items, err := s.coordinator.GetItinerary(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(items))
}

func (s *Server) handleReorderItinerary(w http.ResponseWriter, r *http.Request) {
	var req reorderItineraryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	items, err := s.coordinator.ReorderItinerary(
		r.Context(), mux.Vars(r)["sessionID"], req.ItemIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(items))
}

func (s *Server) handleRemoveItineraryItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	removedBy := r.URL.Query().Get("participant_id")
	if err := s.coordinator.RemoveFromItinerary(
		r.Context(), vars["sessionID"], vars["itemID"], removedBy); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- JSON helpers --------------------------------------------------------

// errorResponse is the wire shape of every error body.
type errorResponse struct {
	Error *planning.Error `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Encode response: %v", err)
	}
}

// writeError maps a coordination error to its HTTP status and writes the
// error body. Server-side failures are logged; client errors are not.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var perr *planning.Error
	if !errors.As(err, &perr) {
		perr = planning.NewError(planning.CodeInternal, "internal error")
	}
	status := statusOf(perr.Code)
	if status >= http.StatusInternalServerError {
		log.Errorf("Request failed: %v", err)
	}
	s.writeJSON(w, status, errorResponse{Error: perr})
}

// statusOf maps coordination error codes to HTTP status codes.
func statusOf(code planning.Code) int {
	switch code {
	case planning.CodeValidation, planning.CodeTooLong,
		planning.CodeExpired, planning.CodeRevoked, planning.CodeFinalized:
		return http.StatusBadRequest
	case planning.CodeNotOrganizer:
		return http.StatusForbidden
	case planning.CodeNotFound, planning.CodeVenueNotFound, planning.CodeItemNotFound:
		return http.StatusNotFound
	case planning.CodeDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into v, reporting malformed bodies as
// validation failures.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return planning.WrapError(planning.CodeValidation, err, "invalid request body")
	}
	return nil
}

// emptyIfNil keeps empty collections rendering as [] instead of null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
