package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/voice-attendance-api/internal/dto"
	"github.com/noah-isme/voice-attendance-api/internal/models"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

type classServiceMock struct {
	classes   []models.Class
	created   *dto.CreateClassRequest
	createErr error
}

func (m *classServiceMock) List(ctx context.Context) ([]models.Class, error) {
	return m.classes, nil
}

func (m *classServiceMock) Create(ctx context.Context, req dto.CreateClassRequest) (*models.Class, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = &req
	return &models.Class{ID: "c1", Name: req.Name, Sections: pq.StringArray(req.Sections)}, nil
}

func (m *classServiceMock) SectionsOf(ctx context.Context, id string) ([]string, error) {
	for _, c := range m.classes {
		if c.ID == id {
			return c.Sections, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
}

func ginParam(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}

func newTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestClassHandlerCreate(t *testing.T) {
	svc := &classServiceMock{}
	handler := NewClassHandler(svc)
	body, _ := json.Marshal(dto.CreateClassRequest{Name: "Grade 10", Sections: []string{"A", "B"}})
	c, w := newTestContext(http.MethodPost, "/classes", body)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, []string{"A", "B"}, svc.created.Sections)
	assert.Contains(t, string(decodeEnvelope(t, w)["data"]), `"Grade 10"`)
}

func TestClassHandlerCreateInvalidBody(t *testing.T) {
	handler := NewClassHandler(&classServiceMock{})
	c, w := newTestContext(http.MethodPost, "/classes", []byte(`{"name":`))

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestClassHandlerCreateDuplicate(t *testing.T) {
	handler := NewClassHandler(&classServiceMock{createErr: appErrors.ErrDuplicateClass})
	body, _ := json.Marshal(dto.CreateClassRequest{Name: "Grade 10", Sections: []string{"A"}})
	c, w := newTestContext(http.MethodPost, "/classes", body)

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_CLASS", errorCode(t, w))
}

func TestClassHandlerSections(t *testing.T) {
	handler := NewClassHandler(&classServiceMock{classes: []models.Class{{ID: "c1", Name: "Grade 10", Sections: pq.StringArray{"A", "B"}}}})

	c, w := newTestContext(http.MethodGet, "/classes/c1/sections", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.Sections(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["A","B"]`, string(decodeEnvelope(t, w)["data"]))

	c, w = newTestContext(http.MethodGet, "/classes/zz/sections", nil)
	c.Params = gin.Params{{Key: "id", Value: "zz"}}
	handler.Sections(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
