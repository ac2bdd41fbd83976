package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseIDs(t *testing.T) {
	valid := "550e8400-e29b-41d4-a716-446655440000"

	tests := []struct {
		name      string
		param     string
		value     string
		parse     func(http.ResponseWriter, *http.Request, *zap.Logger) (uuid.UUID, bool)
		wantOK    bool
		wantError string
	}{
		{"file id valid", "fid", valid, ParseFileID, true, ""},
		{"file id malformed", "fid", "not-a-uuid", ParseFileID, false, "invalid_file_id"},
		{"file id empty", "fid", "", ParseFileID, false, "invalid_file_id"},
		{"task id valid", "tid", valid, ParseTaskID, true, ""},
		{"task id malformed", "tid", "12345", ParseTaskID, false, "invalid_task_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue(tt.param, tt.value)
			rec := httptest.NewRecorder()

			id, ok := tt.parse(rec, req, zap.NewNop())

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, uuid.MustParse(tt.value), id)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Zero(t, rec.Body.Len())
				return
			}

			assert.Equal(t, uuid.Nil, id)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}
