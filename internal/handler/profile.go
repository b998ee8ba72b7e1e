package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"profile-service/internal/auth"
	"profile-service/internal/model"
	"profile-service/internal/service"
)

// ProfileHandler exposes the profile CRUD surface. The same handler
// serves both kinds: each route group binds the handlers with its own
// kind, so /user and /organiser stay symmetric without duplicated code.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// registerRequest is the body for the local-credentials signup path.
// The profile fields are flattened alongside the plaintext password,
// which only ever exists in this request; the store sees a bcrypt hash.
type registerRequest struct {
	model.Profile
	Password string `json:"password"`
}

// HandleRegister returns the signup handler for kind.
//
// HTTP: POST /user/register, POST /organiser/register (no auth)
func (h *ProfileHandler) HandleRegister(kind model.ProfileKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "invalid JSON body",
			})
			return
		}

		if err := h.profiles.Register(r.Context(), kind, &req.Profile, req.Password); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, req.Profile)
	}
}

// HandleCreate returns the authenticated create handler for kind.
//
// HTTP: POST /user, POST /organiser (gated by the matching-kind token)
//
// The payload email must equal the token's email claim; creating a
// record for someone else's identity is Forbidden.
func (h *ProfileHandler) HandleCreate(kind model.ProfileKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "authentication required",
			})
			return
		}

		var profile model.Profile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "invalid JSON body",
			})
			return
		}

		if err := h.profiles.Create(r.Context(), kind, &profile, claims.Email); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, profile)
	}
}

// HandleGetOwn returns the self-lookup handler for kind.
//
// HTTP: GET /user, GET /organiser (gated by the matching-kind token)
func (h *ProfileHandler) HandleGetOwn(kind model.ProfileKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "authentication required",
			})
			return
		}

		profile, err := h.profiles.GetOwn(r.Context(), kind, claims.Email)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, profile)
	}
}

// HandleGetByID returns the public-read handler for kind.
//
// HTTP: GET /user/{id}, GET /organiser/{id}
//
// Any authenticated principal may call this, whichever kind their token
// carries; only the token's validity matters, not its profile claim.
func (h *ProfileHandler) HandleGetByID(kind model.ProfileKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "id path parameter is required",
			})
			return
		}

		profile, err := h.profiles.GetByID(r.Context(), kind, id)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, profile)
	}
}

// HandleUpdate returns the self-update handler for kind.
//
// HTTP: PUT /user, PUT /organiser (gated by the matching-kind token)
func (h *ProfileHandler) HandleUpdate(kind model.ProfileKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "authentication required",
			})
			return
		}

		var profile model.Profile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "invalid JSON body",
			})
			return
		}

		if err := h.profiles.Update(r.Context(), kind, &profile, claims.Email); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, profile)
	}
}

// HandleDelete returns the self-delete handler for kind.
//
// HTTP: DELETE /user, DELETE /organiser (gated by the matching-kind token)
func (h *ProfileHandler) HandleDelete(kind model.ProfileKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "authentication required",
			})
			return
		}

		if err := h.profiles.DeleteOwn(r.Context(), kind, claims.Email); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleHealth reports liveness.
//
// HTTP: GET /health (no auth)
func (h *ProfileHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
