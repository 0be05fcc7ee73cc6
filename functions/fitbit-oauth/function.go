package fitbitoauth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fitglue/healthsync/pkg/bootstrap"
	"github.com/fitglue/healthsync/pkg/infrastructure/database"
	"github.com/fitglue/healthsync/pkg/infrastructure/oauth"
	"github.com/fitglue/healthsync/pkg/types"
)

// SuccessMessage is shown in the browser once tokens are stored.
const SuccessMessage = "Success! You can close this tab."

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error

	router     http.Handler
	routerOnce sync.Once
)

func init() {
	functions.HTTP("FitbitOAuth", FitbitOAuth)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		baseSvc, err := bootstrap.NewService(ctx, nil, nil)
		if err != nil {
			slog.Error("Failed to initialize service", "error", err)
			svcErr = err
			return
		}
		svc = baseSvc
	})
	return svc, svcErr
}

// FitbitOAuth is the HTTP entry point for the authorization flow.
func FitbitOAuth(w http.ResponseWriter, r *http.Request) {
	svc, err := initService(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}
	routerOnce.Do(func() {
		router = NewRouter(&Handlers{
			States:   svc.DB,
			Provider: serviceProviders(svc),
			UserID:   svc.Config.UserID,
			Logger:   svc.Logger.With("component", "fitbit-oauth"),
		})
	})
	router.ServeHTTP(w, r)
}

// Linker is the part of an OAuth provider the flow needs.
type Linker interface {
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (*types.OAuthIntegration, error)
}

// ProviderFunc returns the provider name bound to userID, or false when the
// provider is unknown.
type ProviderFunc func(name, userID string) (Linker, bool)

// StateStore issues and consumes single-use state values.
type StateStore interface {
	CreateOAuthState(ctx context.Context, state *types.OAuthState) error
	ConsumeOAuthState(ctx context.Context, state string) (*types.OAuthState, error)
}

type Handlers struct {
	States   StateStore
	Provider ProviderFunc
	UserID   string
	Logger   *slog.Logger

	now func() time.Time
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter mounts /{provider}/authorize and /{provider}/callback.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/{provider}/authorize", h.authorize)
	r.Get("/{provider}/callback", h.callback)
	return r
}

func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	p, ok := h.Provider(name, h.UserID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown provider"})
		return
	}

	state, err := oauth.IssueState(r.Context(), h.States, h.UserID, name, h.clock())
	if err != nil {
		h.Logger.Error("Failed to issue state", "provider", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	http.Redirect(w, r, p.AuthorizationURL(state), http.StatusFound)
}

func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	q := r.URL.Query()
	logger := h.Logger.With("provider", name, "request_id", middleware.GetReqID(r.Context()))

	if denied := q.Get("error"); denied != "" {
		logger.Warn("Authorization denied", "error", denied, "description", q.Get("error_description"))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "authorization denied: " + denied})
		return
	}

	code, stateValue := q.Get("code"), q.Get("state")
	if code == "" || stateValue == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "code and state are required"})
		return
	}

	st, err := h.States.ConsumeOAuthState(r.Context(), stateValue)
	if errors.Is(err, database.ErrNotFound) {
		logger.Warn("Unknown or expired state")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid or expired state"})
		return
	}
	if err != nil {
		logger.Error("Failed to consume state", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}
	if st.Provider != name {
		logger.Warn("State issued for another provider", "state_provider", st.Provider)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid or expired state"})
		return
	}

	p, ok := h.Provider(name, st.UserID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown provider"})
		return
	}

	integ, err := p.Exchange(r.Context(), code)
	if err != nil {
		logger.Error("Code exchange failed", "user_id", st.UserID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "token exchange failed"})
		return
	}

	logger.Info("Linked account", "user_id", st.UserID, "external_user_id", integ.ExternalUserID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(SuccessMessage))
}

func (h *Handlers) clock() time.Time {
	if h.now == nil {
		return time.Now()
	}
	return h.now()
}

// serviceProviders binds a copy of the configured provider to the user the
// state was issued for.
func serviceProviders(svc *bootstrap.Service) ProviderFunc {
	return func(name, userID string) (Linker, bool) {
		base := svc.Provider(name)
		if base == nil {
			return nil, false
		}
		if userID == base.UserID {
			return base, true
		}
		p := oauth.NewProvider(name, base.Config, base.Store, userID, svc.Logger)
		p.HTTPClient = base.HTTPClient
		return p, true
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
