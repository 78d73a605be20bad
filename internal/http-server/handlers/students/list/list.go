package list

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
	ListFiltered(ctx context.Context, studentRef string, filter models.AppointmentFilter) ([]models.Appointment, error)
}

type Response struct {
	response.Response
	Appointments []models.Appointment `json:"appointments"`
}

// New serves a student's appointments, newest first. Optional query
// parameters status, therapist_ref, date_from and date_to narrow the list.
func New(log *slog.Logger, lister AppointmentLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.students.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		studentRef := chi.URLParam(r, "ref")

		filter, err := parseFilter(r)
		if err != nil {
			log.Error("Invalid filter", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), err.Error()))
			return
		}

		appts, err := lister.ListFiltered(r.Context(), studentRef, filter)
		if err != nil {
			status, body := response.FromError(err, "failed to list appointments")
			log.Error("Failed to list appointments", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		render.JSON(w, r, Response{Appointments: appts})
	}
}

func parseFilter(r *http.Request) (models.AppointmentFilter, error) {
	q := r.URL.Query()
	var filter models.AppointmentFilter

	if v := q.Get("status"); v != "" {
		status, err := models.ParseStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if v := q.Get("therapist_ref"); v != "" {
		filter.TherapistRef = &v
	}
	for name, dst := range map[string]**string{"date_from": &filter.DateFrom, "date_to": &filter.DateTo} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		d, err := models.ParseDate(v)
		if err != nil {
			return filter, err
		}
		s := d.Format(models.DateLayout)
		*dst = &s
	}

	return filter, nil
}
