package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"uncommon.org/progresstrack/pkg/apperror"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestResponseError_Validation(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/students", nil)

	v := &apperror.ValidationError{}
	v.Missing("name")
	v.Missing("school")
	ResponseError(c, fmt.Errorf("create student: %w", v))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error         string   `json:"error"`
		MissingFields []string `json:"missingFields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"name", "school"}, body.MissingFields)
}

func TestResponseError_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/students/x", nil)

	ResponseError(c, apperror.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"resource not found"}`, w.Body.String())
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, err := GetUserID(c)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	id := uuid.New()
	c.Set("user_id", id.String())
	got, err := GetUserID(c)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
