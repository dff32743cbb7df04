package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"dispatchctl/internal/dispatch"
	"dispatchctl/internal/domain"
	"dispatchctl/internal/events"
	"dispatchctl/internal/registry"
	"dispatchctl/internal/store"
)

// Server exposes the dispatch and management API. Subscriber secrets are
// returned exactly once, at registration.
type Server struct {
	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	attempts   store.DeliveryAttemptStore
	hub        *events.Hub
	router     *httprouter.Router
}

func NewServer(dispatcher *dispatch.Dispatcher, reg *registry.Registry, attempts store.DeliveryAttemptStore, hub *events.Hub) *Server {
	s := &Server{
		dispatcher: dispatcher,
		registry:   reg,
		attempts:   attempts,
		hub:        hub,
		router:     httprouter.New(),
	}

	s.router.POST("/v1/events", s.handleDispatch)
	s.router.POST("/v1/subscribers", s.handleRegisterSubscriber)
	s.router.GET("/v1/subscribers", s.handleListSubscribers)
	s.router.DELETE("/v1/subscribers/:id", s.handleDeactivateSubscriber)
	s.router.GET("/v1/attempts", s.handleListAttempts)
	s.router.GET("/v1/attempts/stream", s.handleStreamAttempts)
	s.router.GET("/healthz", s.handleHealth)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

type dispatchRequest struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
	Scope     string         `json:"scope,omitempty"`
}

type dispatchResponse struct {
	EnvelopeID string          `json:"envelope_id"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	AttemptIDs []string        `json:"attempt_ids,omitempty"`
	Channels   []channelResult `json:"channels,omitempty"`
}

type channelResult struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.EventType == "" {
		writeError(w, http.StatusBadRequest, "event_type required")
		return
	}

	// Once dispatch begins, deliveries run to completion or timeout; a
	// client disconnect must not cancel them mid-POST.
	ctx := context.WithoutCancel(r.Context())

	summary, err := s.dispatcher.Dispatch(ctx, domain.EventType(req.EventType), req.Data, req.Scope)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := dispatchResponse{
		EnvelopeID: summary.EnvelopeID,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		AttemptIDs: summary.AttemptIDs,
	}
	for _, c := range summary.Channels {
		cr := channelResult{Channel: string(c.Channel), Delivered: c.Delivered}
		if c.Err != nil {
			cr.Error = c.Err.Error()
		}
		resp.Channels = append(resp.Channels, cr)
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerSubscriberRequest struct {
	Name             string   `json:"name"`
	DestinationURL   string   `json:"destination_url"`
	SubscribedEvents []string `json:"subscribed_events"`
	ScopeID          string   `json:"scope_id,omitempty"`
}

type registerSubscriberResponse struct {
	ID           string `json:"id"`
	SharedSecret string `json:"shared_secret"`
	APIKey       string `json:"api_key"`
}

func (s *Server) handleRegisterSubscriber(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerSubscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	events := make([]domain.EventType, 0, len(req.SubscribedEvents))
	for _, e := range req.SubscribedEvents {
		events = append(events, domain.EventType(e))
	}

	sub := &domain.Subscriber{
		Name:             req.Name,
		DestinationURL:   req.DestinationURL,
		SubscribedEvents: events,
		Active:           true,
		ScopeID:          req.ScopeID,
	}

	apiKey, err := s.registry.Register(r.Context(), sub)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, registerSubscriberResponse{
		ID:           sub.ID,
		SharedSecret: sub.SharedSecret,
		APIKey:       apiKey,
	})
}

type subscriberInfo struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	DestinationURL   string   `json:"destination_url"`
	SubscribedEvents []string `json:"subscribed_events"`
	Active           bool     `json:"active"`
	ScopeID          string   `json:"scope_id,omitempty"`
}

func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	subs, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]subscriberInfo, 0, len(subs))
	for _, sub := range subs {
		info := subscriberInfo{
			ID:             sub.ID,
			Name:           sub.Name,
			DestinationURL: sub.DestinationURL,
			Active:         sub.Active,
			ScopeID:        sub.ScopeID,
		}
		for _, e := range sub.SubscribedEvents {
			info.SubscribedEvents = append(info.SubscribedEvents, string(e))
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeactivateSubscriber(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.registry.Deactivate(r.Context(), ps.ByName("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attemptInfo struct {
	ID             string     `json:"id"`
	SubscriberID   string     `json:"subscriber_id"`
	EnvelopeID     string     `json:"envelope_id"`
	EventType      string     `json:"event_type"`
	DestinationURL string     `json:"destination_url"`
	Status         string     `json:"status"`
	AttemptCount   int        `json:"attempt_count"`
	ResponseStatus int        `json:"response_status,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	attempts, err := s.attempts.List(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]attemptInfo, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptInfo{
			ID:             a.ID,
			SubscriberID:   a.SubscriberID,
			EnvelopeID:     a.EnvelopeID,
			EventType:      string(a.EventType),
			DestinationURL: a.DestinationURL,
			Status:         string(a.Status),
			AttemptCount:   a.AttemptCount,
			ResponseStatus: a.ResponseStatus,
			LastError:      a.LastError,
			NextRetryAt:    a.NextRetryAt,
			CreatedAt:      a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStreamAttempts streams delivery events as server-sent events until
// the client disconnects.
func (s *Server) handleStreamAttempts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := &events.Subscriber{
		ID:         uuid.New().String(),
		EnvelopeID: r.URL.Query().Get("envelope_id"),
		Events:     make(chan events.DeliveryEvent, 100),
	}
	s.hub.Subscribe(sub)
	defer s.hub.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe runs the API server until the context is canceled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
