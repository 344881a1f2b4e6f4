package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"on": true}`},
		{name: "unknown fields ignored", body: `{"on": true, "extra": 1}`},
		{name: "malformed", body: `{"on": `, wantErr: true},
		{name: "trailing value", body: `{"on": true} {"on": false}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dest struct {
				On bool `json:"on"`
			}
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := ParseJSON(httptest.NewRecorder(), req, &dest)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, dest.On)
		})
	}
}

func TestRespondErrorWithExtras(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorWithExtras(rec, http.StatusConflict, "highlight exists", map[string]interface{}{
		"resource_type": "comment",
		"status":        999, // cannot override the problem fields
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "comment", body["resource_type"])
	assert.Equal(t, float64(http.StatusConflict), body["status"])
	assert.Equal(t, "highlight exists", body["detail"])
	assert.Equal(t, "Conflict", body["title"])
}

func TestUserIDContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", GetUserID(req))

	req = WithUserID(req, "user-1")
	assert.Equal(t, "user-1", GetUserID(req))
	id, ok := UserIDFromContext(req.Context())
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)
}
