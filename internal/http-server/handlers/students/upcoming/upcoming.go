package upcoming

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
	"mindcare-service/pkg/sl"
)

type UpcomingFinder interface {
	ListUpcoming(ctx context.Context, studentRef string, now time.Time) (models.Appointment, bool, error)
}

type Response struct {
	response.Response
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

func New(log *slog.Logger, finder UpcomingFinder, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.students.upcoming.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		studentRef := chi.URLParam(r, "ref")

		appt, ok, err := finder.ListUpcoming(r.Context(), studentRef, now())
		if err != nil {
			status, body := response.FromError(err, "failed to find upcoming appointment")
			log.Error("Failed to find upcoming appointment", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		if !ok {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "no upcoming appointment"))
			return
		}

		render.JSON(w, r, Response{Appointment: &appt})
	}
}
