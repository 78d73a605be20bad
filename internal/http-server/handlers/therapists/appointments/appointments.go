package appointments

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
	"mindcare-service/pkg/sl"
)

type AppointmentLister interface {
	ListByTherapist(ctx context.Context, therapistRef string) ([]models.Appointment, error)
}

type Response struct {
	response.Response
	Appointments []models.Appointment `json:"appointments"`
}

func New(log *slog.Logger, lister AppointmentLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.therapists.appointments.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		therapistRef := chi.URLParam(r, "id")

		appts, err := lister.ListByTherapist(r.Context(), therapistRef)
		if err != nil {
			status, body := response.FromError(err, "failed to list appointments")
			log.Error("Failed to list therapist appointments", sl.Err(err))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		render.JSON(w, r, Response{Appointments: appts})
	}
}
