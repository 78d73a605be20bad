package day

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

type DayGetter interface {
	Day(ctx context.Context, therapistRef, date string) (*models.DaySchedule, error)
}

type Response struct {
	response.Response
	Day *models.DaySchedule `json:"day,omitempty"`
}

func New(log *slog.Logger, getter DayGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.therapists.day.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		day, err := getter.Day(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "date"))
		if err != nil {
			status, body := response.FromError(err, "failed to get day schedule")
			log.Error("Failed to get day schedule", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		render.JSON(w, r, Response{Day: day})
	}
}
