package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/calcapi/internal/auth"
	"github.com/isdelr/calcapi/internal/monitoring"
	"github.com/isdelr/calcapi/internal/services"
	"github.com/rs/zerolog/log"
)

// CalculationHandler handles HTTP requests for the current user's calculations.
type CalculationHandler struct {
	service services.CalculationServiceProvider
}

// NewCalculationHandler creates a new CalculationHandler.
func NewCalculationHandler(service services.CalculationServiceProvider) *CalculationHandler {
	return &CalculationHandler{service: service}
}

// CreateCalculationPayload is the body of POST /calculations.
type CreateCalculationPayload struct {
	Type   string    `json:"type" validate:"required"`
	Inputs []float64 `json:"inputs" validate:"required,min=2"`
}

// UpdateCalculationPayload is the body of PUT /calculations/{id}.
type UpdateCalculationPayload struct {
	Inputs []float64 `json:"inputs" validate:"required,min=2"`
}

// Create handles the request to evaluate and store a new calculation.
func (h *CalculationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
		return
	}

	var payload CreateCalculationPayload
	if err := decodeBody(w, r, &payload); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	calc, err := h.service.Create(r.Context(), user.ID, payload.Type, payload.Inputs)
	if err != nil {
		h.fail(w, err, payload.Type, user.ID, "")
		return
	}

	monitoring.RecordCalculation(string(calc.Type), "ok")
	writeJSON(w, http.StatusCreated, calc)
}

// List handles the request to get all of the user's calculations.
func (h *CalculationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
		return
	}

	calcs, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to list calculations")
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calcs)
}

// Get handles the request to get a single calculation by its ID.
func (h *CalculationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
		return
	}

	id := chi.URLParam(r, "id")
	calc, err := h.service.Get(r.Context(), user.ID, id)
	if err != nil {
		if status, _ := errorStatus(err); status == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", user.ID).Str("calculation_id", id).Msg("Failed to get calculation")
		}
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calc)
}

// Update handles the request to replace a calculation's inputs.
func (h *CalculationHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
		return
	}

	id := chi.URLParam(r, "id")
	var payload UpdateCalculationPayload
	if err := decodeBody(w, r, &payload); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	calc, err := h.service.Update(r.Context(), user.ID, id, payload.Inputs)
	if err != nil {
		h.fail(w, err, "", user.ID, id)
		return
	}

	monitoring.RecordCalculation(string(calc.Type), "ok")
	writeJSON(w, http.StatusOK, calc)
}

// Delete handles the request to delete a calculation.
func (h *CalculationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), user.ID, id); err != nil {
		if status, _ := errorStatus(err); status == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", user.ID).Str("calculation_id", id).Msg("Failed to delete calculation")
		}
		writeServiceErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail records a rejected evaluation and writes the error response.
func (h *CalculationHandler) fail(w http.ResponseWriter, err error, calcType, userID, id string) {
	status, code := errorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("user_id", userID).Str("calculation_id", id).Msg("Failed to save calculation")
	case http.StatusBadRequest:
		monitoring.RecordCalculation(calcType, code)
	}
	writeServiceErr(w, err)
}
