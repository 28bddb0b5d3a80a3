package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-data-analyst/internal/app"
	"ai-data-analyst/internal/transport/http/response"
)

type ChartHandler struct {
	chartService *app.ChartService
}

type SaveChartRequest struct {
	Label     string `json:"label" binding:"required,max=255"`
	ChartData string `json:"chart_data" binding:"required"`
}

func NewChartHandler(chartService *app.ChartService) *ChartHandler {
	return &ChartHandler{chartService: chartService}
}

func (h *ChartHandler) Save(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	datasetID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid dataset id")
		return
	}

	var req SaveChartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	chart, err := h.chartService.Save(c.Request.Context(), app.SaveChartInput{
		UserID:    userID,
		DatasetID: datasetID,
		Label:     req.Label,
		ChartData: req.ChartData,
	})
	if err != nil {
		if errors.Is(err, app.ErrChartInvalid) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			return
		}
		writeDatasetError(c, err, "save chart failed")
		return
	}
	response.OK(c, chart)
}

func (h *ChartHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	datasetID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid dataset id")
		return
	}

	charts, err := h.chartService.List(c.Request.Context(), userID, datasetID)
	if err != nil {
		writeDatasetError(c, err, "list charts failed")
		return
	}
	response.OK(c, charts)
}
