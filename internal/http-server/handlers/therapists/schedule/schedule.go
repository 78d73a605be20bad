package schedule

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"mindcare-service/api"
	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
	"mindcare-service/pkg/sl"
)

type DayScheduler interface {
	SetDaySchedule(ctx context.Context, therapistRef, date string, slots []models.SlotTime) (*models.DaySchedule, error)
}

type Request struct {
	api.DayScheduleRequest
}

type Response struct {
	response.Response
	Day *models.DaySchedule `json:"day,omitempty"`
}

func New(log *slog.Logger, scheduler DayScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.therapists.schedule.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		therapistRef := chi.URLParam(r, "id")
		date := chi.URLParam(r, "date")

		day, err := scheduler.SetDaySchedule(r.Context(), therapistRef, date, req.TimeSlots)
		if err != nil {
			status, body := response.FromError(err, "failed to update day schedule")
			log.Error("Failed to update day schedule", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		log.Info("Day schedule updated",
			slog.String("therapist_ref", therapistRef),
			slog.String("date", date),
		)

		render.JSON(w, r, Response{Day: day})
	}
}
