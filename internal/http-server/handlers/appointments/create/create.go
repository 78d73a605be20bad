package create

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"mindcare-service/api"
	"mindcare-service/internal/models"
	"mindcare-service/internal/service"
	"mindcare-service/pkg/response"
	"mindcare-service/pkg/sl"
)

type AppointmentBooker interface {
	BookAppointment(ctx context.Context, req service.BookRequest) (models.Appointment, error)
}

type Request struct {
	api.AppointmentCreateRequest
}

type Response struct {
	response.Response
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

func New(log *slog.Logger, booker AppointmentBooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.create.New"

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

		if req.StudentRef == "" || req.TherapistRef == "" {
			log.Error("student_ref or therapist_ref is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "student_ref and therapist_ref are required"))
			return
		}

		appt, err := booker.BookAppointment(r.Context(), service.BookRequest{
			StudentRef:   req.StudentRef,
			TherapistRef: req.TherapistRef,
			Date:         req.AppointmentDate,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
			Reason:       req.Reason,
		})
		if err != nil {
			status, body := response.FromError(err, "failed to book appointment")
			log.Error("Failed to book appointment", sl.Err(err), slog.Int("status", status))
			render.Status(r, status)
			render.JSON(w, r, body)
			return
		}

		log.Info("Appointment booked", slog.Int64("appointment_id", appt.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Appointment: &appt})
	}
}
