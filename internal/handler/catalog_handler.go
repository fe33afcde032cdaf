package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/institutoberea/enrollment-api/internal/dto"
	"github.com/institutoberea/enrollment-api/pkg/response"
)

type catalogBuilder interface {
	BuildCatalog(ctx context.Context, learnerID string) (*dto.CatalogResponse, bool, error)
}

// CatalogHandler exposes the enrollment catalog endpoint.
type CatalogHandler struct {
	catalog catalogBuilder
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog catalogBuilder) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Get godoc
// @Summary Enrollment catalog for the open cycle
// @Tags Catalog
// @Produce json
// @Param learnerId query string false "Learner to filter eligibility for; omit for anonymous browsing"
// @Success 200 {object} response.Envelope
// @Router /catalog [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	learnerID := c.Query("learnerId")

	catalog, cached, err := h.catalog.BuildCatalog(c.Request.Context(), learnerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, catalog, nil, map[string]interface{}{"cached": cached})
}
