package get

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

type AppointmentGetter interface {
	GetAppointment(ctx context.Context, id int64) (models.Appointment, error)
}

type Response struct {
	response.Response
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

func New(log *slog.Logger, getter AppointmentGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.get.New"

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

		appt, err := getter.GetAppointment(r.Context(), id)
		if err != nil {
			status, body := response.FromError(err, "failed to get appointment")
			log.Error("Failed to get appointment", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		render.JSON(w, r, Response{Appointment: &appt})
	}
}
