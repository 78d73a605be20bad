package cancel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"mindcare-service/api"
	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
	"mindcare-service/pkg/sl"
)

type AppointmentCanceller interface {
	CancelAppointment(ctx context.Context, id int64, reason string) (models.Appointment, error)
	CancelOwnAppointment(ctx context.Context, studentRef string, id int64, reason string) (models.Appointment, error)
}

type Request struct {
	api.AppointmentCancelRequest
}

type Response struct {
	response.Response
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

func New(log *slog.Logger, canceller AppointmentCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.cancel.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			log.Error("Invalid appointment id", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid appointment id"))
			return
		}

		// An empty body is an empty reason; the service rejects it.
		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Error("Failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		var appt models.Appointment
		if req.StudentRef != "" {
			appt, err = canceller.CancelOwnAppointment(r.Context(), req.StudentRef, id, req.Reason)
		} else {
			appt, err = canceller.CancelAppointment(r.Context(), id, req.Reason)
		}
		if err != nil {
			status, body := response.FromError(err, "failed to cancel appointment")
			log.Error("Failed to cancel appointment", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		log.Info("Appointment cancelled", slog.Int64("appointment_id", id))

		render.JSON(w, r, Response{Appointment: &appt})
	}
}
