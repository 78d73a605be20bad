package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
	"mindcare-service/pkg/sl"
)

type TherapistLister interface {
	ListTherapists(ctx context.Context) ([]models.Therapist, error)
}

type Response struct {
	response.Response
	Therapists []models.Therapist `json:"therapists"`
}

func New(log *slog.Logger, lister TherapistLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.therapists.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		therapists, err := lister.ListTherapists(r.Context())
		if err != nil {
			status, body := response.FromError(err, "failed to list therapists")
			log.Error("Failed to list therapists", sl.Err(err))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		render.JSON(w, r, Response{Therapists: therapists})
	}
}
