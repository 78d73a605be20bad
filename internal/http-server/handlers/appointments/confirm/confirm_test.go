package confirm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
)

type confirmerFunc func(ctx context.Context, id int64) (models.Appointment, error)

func (f confirmerFunc) ConfirmAppointment(ctx context.Context, id int64) (models.Appointment, error) {
	return f(ctx, id)
}

func serve(t *testing.T, c AppointmentConfirmer, path string) *httptest.ResponseRecorder {
	t.Helper()

	router := chi.NewRouter()
	router.Post("/appointments/{id}/confirm", New(slog.New(slog.NewTextHandler(io.Discard, nil)), c))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
	return rr
}

func TestConfirm(t *testing.T) {
	c := confirmerFunc(func(_ context.Context, id int64) (models.Appointment, error) {
		return models.Appointment{ID: id, Status: models.AppointmentConfirmed}, nil
	})

	rr := serve(t, c, "/appointments/4/confirm")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Appointment)
	assert.Equal(t, int64(4), resp.Appointment.ID)
	assert.Equal(t, models.AppointmentConfirmed, resp.Appointment.Status)
}

func TestConfirmErrors(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"already confirmed", "/appointments/4/confirm", fmt.Errorf("Confirmed -> Confirmed: %w", response.ErrInvalidTransition), http.StatusConflict, response.INVALID_TRANSITION},
		{"not found", "/appointments/4/confirm", response.ErrNotFound, http.StatusNotFound, response.NOT_FOUND},
		{"locked", "/appointments/4/confirm", response.ErrLocked, http.StatusLocked, response.LOCKED},
		{"bad id", "/appointments/x/confirm", nil, http.StatusBadRequest, response.BAD_REQUEST},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := confirmerFunc(func(context.Context, int64) (models.Appointment, error) {
				return models.Appointment{}, tc.err
			})

			rr := serve(t, c, tc.path)
			require.Equal(t, tc.status, rr.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, string(tc.code), resp.Code)
			assert.Nil(t, resp.Appointment)
		})
	}
}
