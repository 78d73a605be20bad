package generate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"mindcare-service/api"
	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
	"mindcare-service/pkg/sl"
)

type SlotGenerator interface {
	GenerateSlots(ctx context.Context, therapistRef string, dates models.DateRange) (int, error)
}

type Request struct {
	api.SlotGenerateRequest
}

type Response struct {
	response.Response
	api.SlotGenerateResponse
}

func New(log *slog.Logger, generator SlotGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.generate.New"

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

		log.Debug("Request body decoded", slog.Any("request", req))

		if req.TherapistRef == "" {
			log.Error("therapist_ref is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "therapist_ref is required"))
			return
		}

		// A single date may be given as date_from alone.
		if req.DateTo == "" {
			req.DateTo = req.DateFrom
		}

		created, err := generator.GenerateSlots(r.Context(), req.TherapistRef, models.DateRange{
			From: req.DateFrom,
			To:   req.DateTo,
		})
		if err != nil {
			status, body := response.FromError(err, "failed to generate slots")
			log.Error("Failed to generate slots", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		log.Info("Slots generated",
			slog.String("therapist_ref", req.TherapistRef),
			slog.Int("days_created", created),
		)

		render.JSON(w, r, Response{SlotGenerateResponse: api.SlotGenerateResponse{
			TherapistRef: req.TherapistRef,
			DaysCreated:  created,
		}})
	}
}
