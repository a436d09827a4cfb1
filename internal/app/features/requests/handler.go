// Package requests exposes the event request workflow over JSON.
package requests

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/civicworks/eventgate/internal/app/requestflow"
	"github.com/civicworks/eventgate/internal/app/store/requests"
	"github.com/civicworks/eventgate/internal/app/system/auth"
	"github.com/civicworks/eventgate/internal/app/system/timeouts"
	"github.com/civicworks/eventgate/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var validate = validator.New()

type Handler struct {
	Flow *requestflow.Service
	Log  *zap.Logger
}

func NewHandler(flow *requestflow.Service, logger *zap.Logger) *Handler {
	return &Handler{Flow: flow, Log: logger}
}

type createPayload struct {
	Title            string                 `json:"title" validate:"required,max=200"`
	Description      string                 `json:"description" validate:"max=10000"`
	Category         string                 `json:"category" validate:"max=100"`
	MunicipalityID   string                 `json:"municipality_id" validate:"required"`
	DistrictID       string                 `json:"district_id"`
	ProvinceID       string                 `json:"province_id"`
	OrganizationType string                 `json:"organization_type"`
	StartsAt         time.Time              `json:"starts_at" validate:"required"`
	EndsAt           *time.Time             `json:"ends_at"`
	CategoryData     map[string]interface{} `json:"category_data"`
}

type actionPayload struct {
	Action        string     `json:"action" validate:"required,max=50"`
	Notes         string     `json:"notes" validate:"max=10000"`
	ProposedStart time.Time  `json:"proposed_start"`
	ProposedEnd   *time.Time `json:"proposed_end"`
	Reason        string     `json:"reason" validate:"max=2000"`
}

type updatePayload struct {
	Title        string                 `json:"title" validate:"required,max=200"`
	Description  string                 `json:"description" validate:"max=10000"`
	Category     string                 `json:"category" validate:"max=100"`
	StartsAt     time.Time              `json:"starts_at" validate:"required"`
	EndsAt       *time.Time             `json:"ends_at"`
	CategoryData map[string]interface{} `json:"category_data"`
}

// Create handles POST /requests.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromSession(w, r)
	if !ok {
		return
	}

	var p createPayload
	if !decodePayload(w, r, &p) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	req, err := h.Flow.CreateRequest(ctx, actorID, requestflow.CreateInput{
		Title:            p.Title,
		Description:      p.Description,
		Category:         p.Category,
		MunicipalityID:   p.MunicipalityID,
		DistrictID:       p.DistrictID,
		ProvinceID:       p.ProvinceID,
		OrganizationType: p.OrganizationType,
		StartsAt:         p.StartsAt,
		EndsAt:           p.EndsAt,
		CategoryData:     p.CategoryData,
	})
	if err != nil {
		h.respondFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// Get handles GET /requests/{requestID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromSession(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	req, err := h.Flow.GetRequest(ctx, actorID, requestID)
	if err != nil {
		h.respondFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// List handles GET /requests: everything the caller may see, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromSession(w, r)
	if !ok {
		return
	}

	f := requeststore.Filter{
		Status:           r.URL.Query().Get("status"),
		OrganizationType: r.URL.Query().Get("organization_type"),
		Limit:            100,
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Flow.RequestsVisibleTo(ctx, actorID, f)
	if err != nil {
		h.respondFlowError(w, r, err)
		return
	}
	if list == nil {
		list = []models.EventRequest{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ExecuteAction handles POST /requests/{requestID}/actions.
//
// A deferred publish is not a failure of the action: the approval committed,
// so the committed request is returned with publish_pending=true and the
// retry worker owns the rest.
func (h *Handler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromSession(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")

	var p actionPayload
	if !decodePayload(w, r, &p) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	req, err := h.Flow.ExecuteAction(ctx, actorID, requestID, requestflow.ActionInput{
		Action:        p.Action,
		Notes:         p.Notes,
		ProposedStart: p.ProposedStart,
		ProposedEnd:   p.ProposedEnd,
		Reason:        p.Reason,
	})
	if err != nil {
		var pubErr *requestflow.PublishError
		if errors.As(err, &pubErr) && req != nil {
			h.Log.Warn("action committed but publish deferred",
				zap.String("request_id", requestID),
				zap.Error(pubErr))
			writeJSON(w, http.StatusOK, req)
			return
		}
		h.respondFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Update handles PUT /requests/{requestID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromSession(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")

	var p updatePayload
	if !decodePayload(w, r, &p) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	req, err := h.Flow.UpdateRequest(ctx, actorID, requestID, requestflow.UpdateInput{
		Title:        p.Title,
		Description:  p.Description,
		Category:     p.Category,
		StartsAt:     p.StartsAt,
		EndsAt:       p.EndsAt,
		CategoryData: p.CategoryData,
	})
	if err != nil {
		h.respondFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Reviewers handles GET /requests/{requestID}/reviewers: a fresh discovery
// run for the request.
func (h *Handler) Reviewers(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromSession(w, r); !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reviewers, err := h.Flow.FindReviewersForRequest(ctx, requestID)
	if err != nil {
		h.respondFlowError(w, r, err)
		return
	}
	if reviewers == nil {
		reviewers = []models.ReviewerSnapshot{}
	}
	writeJSON(w, http.StatusOK, reviewers)
}

// RetryPublish handles POST /requests/{requestID}/publish-retry. Admin-gated
// at the route; settles a deferred downstream publish.
func (h *Handler) RetryPublish(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	req, err := h.Flow.RetryPublish(ctx, requestID)
	if err != nil {
		var pubErr *requestflow.PublishError
		if errors.As(err, &pubErr) {
			writeError(w, http.StatusBadGateway, pubErr.Error())
			return
		}
		h.respondFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

/* ------------------------------ helpers ----------------------------------- */

func actorFromSession(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return primitive.NilObjectID, false
	}
	return id, true
}

func decodePayload(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) respondFlowError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr   *requestflow.ValidationError
		authErr  *requestflow.AuthorizationError
		nfErr    *requestflow.NotFoundError
		transErr *requestflow.InvalidTransitionError
		confErr  *requestflow.ConflictError
	)
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": valErr.Message,
			"field": valErr.Field,
		})
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":       authErr.Error(),
			"permissions": authErr.Permissions,
		})
	case errors.As(err, &nfErr):
		writeError(w, http.StatusNotFound, nfErr.Error())
	case errors.As(err, &transErr):
		allowed := make([]string, len(transErr.Allowed))
		for i, a := range transErr.Allowed {
			allowed[i] = string(a)
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":         transErr.Error(),
			"valid_actions": allowed,
		})
	case errors.As(err, &confErr):
		writeError(w, http.StatusConflict, confErr.Error())
	default:
		h.Log.Error("request handler error",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
