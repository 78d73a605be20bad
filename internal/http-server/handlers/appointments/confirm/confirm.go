package confirm

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
	"mindcare-service/pkg/sl"
)

type AppointmentConfirmer interface {
	ConfirmAppointment(ctx context.Context, id int64) (models.Appointment, error)
}

type Response struct {
	response.Response
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

func New(log *slog.Logger, confirmer AppointmentConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.confirm.New"

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

		appt, err := confirmer.ConfirmAppointment(r.Context(), id)
		if err != nil {
			status, body := response.FromError(err, "failed to confirm appointment")
			log.Error("Failed to confirm appointment", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		log.Info("Appointment confirmed", slog.Int64("appointment_id", id))

		render.JSON(w, r, Response{Appointment: &appt})
	}
}
