package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	authmw "github.com/MrEthical07/goIdentity/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 16

type server struct {
	engine         *goIdentity.Engine
	logger         zerolog.Logger
	requestTimeout time.Duration
}

type exchangeRequest struct {
	Credential      string                        `json:"credential"`
	Domain          string                        `json:"domain"`
	Restrictions    *goIdentity.TokenRestrictions `json:"restrictions"`
	ClientID        string                        `json:"client_id"`
	TrackingSession string                        `json:"tracking_session"`
	Track           bool                          `json:"track"`
}

type revokeRequest struct {
	Token string `json:"token"`
}

type exchangePair struct {
	From goIdentity.ExchangeType `json:"from"`
	To   goIdentity.ExchangeType `json:"to"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *server) routes(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/exchanges", s.listExchanges)
		r.Post("/exchange/{from}/{to}", s.exchange)
		r.Post("/revoke", s.revoke)
		r.With(authmw.RequireAccessToken(s.engine), authmw.RequireScopes("read")).Get("/me", s.me)
	})
	return r
}

// exchange runs one registered exchange. The credential comes from the body,
// or from the Authorization header when the body leaves it empty.
func (s *server) exchange(w http.ResponseWriter, r *http.Request) {
	from := goIdentity.ExchangeType(chi.URLParam(r, "from"))
	to := goIdentity.ExchangeType(chi.URLParam(r, "to"))

	var body exchangeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body", Kind: goIdentity.KindFormat.String()})
			return
		}
	}
	if body.Credential == "" {
		body.Credential = r.Header.Get("Authorization")
	}

	req := goIdentity.AuthRequest{
		Credential:   body.Credential,
		Restrictions: body.Restrictions,
		Domain:       body.Domain,
		Context: goIdentity.RequestContext{
			ClientID:        body.ClientID,
			TrackingSession: body.TrackingSession,
			Track:           body.Track,
		},
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	tokens, err := s.engine.Exchange(ctx, req, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *server) revoke(w http.ResponseWriter, r *http.Request) {
	var body revokeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body", Kind: goIdentity.KindFormat.String()})
			return
		}
	}
	if body.Token == "" {
		body.Token = r.Header.Get("Authorization")
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.engine.RevokeToken(ctx, body.Token); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	EntityType      goIdentity.EntityType `json:"entityType"`
	EntityID        string                `json:"entityId"`
	Domain          string                `json:"domain,omitempty"`
	ExternalID      string                `json:"externalId,omitempty"`
	Scopes          []string              `json:"scopes,omitempty"`
	Roles           []string              `json:"roles,omitempty"`
	TrackingSession string                `json:"trackingSession,omitempty"`
}

// me describes the account behind the bearer access token.
func (s *server) me(w http.ResponseWriter, r *http.Request) {
	principal, ok := authmw.PrincipalFromContext(r.Context())
	if !ok || principal.Account == nil {
		s.writeError(w, r, goIdentity.ErrUnauthorized)
		return
	}
	a := principal.Account
	scopes := a.Scopes
	if principal.Restrictions != nil {
		scopes = principal.Restrictions.Scopes
	}
	writeJSON(w, http.StatusOK, meResponse{
		EntityType:      principal.EntityType,
		EntityID:        a.ID,
		Domain:          a.Domain,
		ExternalID:      a.ExternalID,
		Scopes:          scopes,
		Roles:           a.Roles,
		TrackingSession: principal.TrackingSession,
	})
}

func (s *server) listExchanges(w http.ResponseWriter, _ *http.Request) {
	pairs := s.engine.SupportedExchanges()
	out := make([]exchangePair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, exchangePair{From: p.From, To: p.To})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := r.Context()

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ctx = goIdentity.WithClientIP(ctx, host)
	ctx = goIdentity.WithUserAgent(ctx, r.UserAgent())
	if device := r.Header.Get("X-Device-ID"); device != "" {
		ctx = goIdentity.WithDeviceID(ctx, device)
	}

	if s.requestTimeout > 0 {
		return context.WithTimeout(ctx, s.requestTimeout)
	}
	return context.WithCancel(ctx)
}

// writeError renders err by kind. Authorization failures collapse to a single
// message so responses do not reveal which check failed.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := goIdentity.KindOf(err)
	status, msg := statusFor(kind, err)

	ev := s.logger.Debug()
	if status >= http.StatusInternalServerError {
		ev = s.logger.Error()
	}
	ev.Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("kind", kind.String()).
		Int("status", status).
		Msg("exchange failed")

	writeJSON(w, status, errorResponse{Error: msg, Kind: kind.String()})
}

func statusFor(kind goIdentity.ErrorKind, err error) (int, string) {
	switch kind {
	case goIdentity.KindAuthorization:
		return http.StatusUnauthorized, goIdentity.PublicError(err).Error()
	case goIdentity.KindFormat:
		return http.StatusBadRequest, goIdentity.ErrInvalidAuthorizationFormat.Error()
	case goIdentity.KindDispatch:
		return http.StatusNotFound, err.Error()
	case goIdentity.KindUnavailable:
		return http.StatusServiceUnavailable, goIdentity.ErrBackendUnavailable.Error()
	case goIdentity.KindTimeout:
		if errors.Is(err, context.Canceled) {
			return 499, "request canceled"
		}
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
