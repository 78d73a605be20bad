package get

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

type SlotGetter interface {
	AvailableSlots(ctx context.Context, therapistRef, date string) ([]models.SlotTime, error)
}

type Response struct {
	response.Response
	api.AvailabilityResponse
}

// New serves the free slots of one therapist on the date given by the
// required date query parameter.
func New(log *slog.Logger, getter SlotGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		therapistRef := chi.URLParam(r, "id")
		date := r.URL.Query().Get("date")

		if date == "" {
			log.Error("date is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "date is required"))
			return
		}

		slots, err := getter.AvailableSlots(r.Context(), therapistRef, date)
		if err != nil {
			status, body := response.FromError(err, "failed to get available slots")
			log.Error("Failed to get available slots", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		render.JSON(w, r, Response{AvailabilityResponse: api.AvailabilityResponse{
			TherapistRef: therapistRef,
			Date:         date,
			Slots:        slots,
		}})
	}
}
