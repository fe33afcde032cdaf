package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/institutoberea/enrollment-api/internal/dto"
	"github.com/institutoberea/enrollment-api/internal/models"
	appErrors "github.com/institutoberea/enrollment-api/pkg/errors"
)

type fakeCatalogBuilder struct {
	resp        *dto.CatalogResponse
	cached      bool
	err         error
	lastLearner string
}

func (f *fakeCatalogBuilder) BuildCatalog(_ context.Context, learnerID string) (*dto.CatalogResponse, bool, error) {
	f.lastLearner = learnerID
	return f.resp, f.cached, f.err
}

func TestCatalogHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	builder := &fakeCatalogBuilder{
		resp:   &dto.CatalogResponse{OpenCycle: &models.Cycle{ID: "cycle-1"}, Levels: []dto.CatalogLevel{}},
		cached: true,
	}
	handler := NewCatalogHandler(builder)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/catalog?learnerId=learner-1", nil)

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "learner-1", builder.lastLearner)

	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cached"])
}

func TestCatalogHandlerGetAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	builder := &fakeCatalogBuilder{resp: &dto.CatalogResponse{Levels: []dto.CatalogLevel{}}}
	handler := NewCatalogHandler(builder)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/catalog", nil)

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", builder.lastLearner)
}

func TestCatalogHandlerGetError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCatalogHandler(&fakeCatalogBuilder{err: appErrors.Clone(appErrors.ErrInternal, "boom")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/catalog", nil)

	handler.Get(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
