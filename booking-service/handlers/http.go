package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/tripline/booking-system/booking-service/application"
	"github.com/tripline/booking-system/shared/saga"
)

// BookingHandlers contains booking HTTP handlers
type BookingHandlers struct {
	bookTrip   *application.BookTrip
	getBooking *application.GetBooking
}

// NewBookingHandlers creates new booking handlers
func NewBookingHandlers(
	bookTrip *application.BookTrip,
	getBooking *application.GetBooking,
) *BookingHandlers {
	return &BookingHandlers{
		bookTrip:   bookTrip,
		getBooking: getBooking,
	}
}

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// BookTrip handles trip booking requests
func (h *BookingHandlers) BookTrip(w http.ResponseWriter, r *http.Request) {
	var cmd application.BookTripCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "INVALID_REQUEST",
			Message: "invalid request body",
		})
		return
	}

	response, err := h.bookTrip.Execute(r.Context(), &cmd)
	if err != nil {
		var report *saga.SagaError
		if errors.As(err, &report) {
			// The saga ran and rolled back; the report carries what was undone
			writeJSON(w, http.StatusConflict, errorResponse{
				Code:    "BOOKING_FAILED",
				Message: report.Error(),
				Details: report.Compensations,
			})
			return
		}

		if strings.HasPrefix(err.Error(), "invalid") {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// GetBooking handles booking retrieval requests
func (h *BookingHandlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")

	response, err := h.getBooking.Execute(r.Context(), &application.GetBookingQuery{
		BookingID: bookingID,
	})
	if err != nil {
		if errors.Is(err, application.ErrBookingNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{
				Code:    "BOOKING_NOT_FOUND",
				Message: err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterRoutes registers booking routes
func (h *BookingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.BookTrip)
		r.Get("/{id}", h.GetBooking)
	})
}
