package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBroker struct{ closed bool }

type stubRooms []string

func (r stubRooms) Rooms() []string { return r }

func (b stubBroker) IsClosed() bool { return b.closed }

type readyResponse struct {
	Status string                       `json:"status"`
	Checks map[string]HealthCheckResult `json:"checks"`
}

func TestHealth_ReturnsOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	Health(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthCheckResult_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(HealthCheckResult{Status: "up"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"up"}`, string(data))
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		broker     BrokerStatus
		wantCode   int
		wantStatus string
		wantDB     string
		wantRMQ    string
	}{
		{
			name:       "all dependencies up",
			broker:     stubBroker{},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
			wantDB:     "up",
			wantRMQ:    "up",
		},
		{
			name:       "publishing disabled",
			broker:     nil,
			wantCode:   http.StatusOK,
			wantStatus: "ready",
			wantDB:     "up",
			wantRMQ:    "disabled",
		},
		{
			name:       "database down",
			pingErr:    errors.New("connection refused"),
			broker:     stubBroker{},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
			wantDB:     "down",
			wantRMQ:    "up",
		},
		{
			name:       "broker closed",
			broker:     stubBroker{closed: true},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
			wantDB:     "up",
			wantRMQ:    "down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer db.Close()

			ping := mock.ExpectPing()
			if tt.pingErr != nil {
				ping.WillReturnError(tt.pingErr)
			}

			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			w := httptest.NewRecorder()

			Ready(db, tt.broker, stubRooms{"a", "b"})(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			var body readyResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantDB, body.Checks["database"].Status)
			assert.Equal(t, tt.wantRMQ, body.Checks["rabbitmq"].Status)
			assert.Equal(t, "up", body.Checks["registry"].Status)
			assert.Equal(t, float64(2), body.Checks["registry"].Metadata["rooms"])
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// Benchmark health endpoint
func BenchmarkHealth(b *testing.B) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		Health(w, req)
	}
}
