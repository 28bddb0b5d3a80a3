package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ai-data-analyst/internal/app"
	"ai-data-analyst/internal/ingest"
	"ai-data-analyst/internal/transport/http/response"
)

const unsupportedFormatMessage = "Unsupported file format. Please upload a CSV, TSV, Excel, JSON, Parquet, or Feather file."

type DatasetHandler struct {
	datasetService *app.DatasetService
	maxUploadBytes int64
}

func NewDatasetHandler(datasetService *app.DatasetService, maxUploadBytes int64) *DatasetHandler {
	return &DatasetHandler{datasetService: datasetService, maxUploadBytes: maxUploadBytes}
}

// Upload takes a multipart "file" and turns it into a queryable dataset.
func (h *DatasetHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge,
				fmt.Sprintf("file too large (max %d MB)", h.maxUploadBytes>>20))
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	dataset, err := h.datasetService.Upload(c.Request.Context(), app.UploadInput{
		UserID:      userID,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnsupportedFormat):
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFormat, unsupportedFormatMessage)
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, ingest.ErrIngestionFailed):
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, response.CodeIngestionFailed, capitalize(err.Error()))
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
		}
		return
	}

	response.OK(c, dataset)
}

func (h *DatasetHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	datasets, err := h.datasetService.List(c.Request.Context(), userID)
	if err != nil {
		writeDatasetError(c, err, "list datasets failed")
		return
	}
	response.OK(c, datasets)
}

func (h *DatasetHandler) History(c *gin.Context) {
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

	history, err := h.datasetService.History(c.Request.Context(), userID, datasetID)
	if err != nil {
		writeDatasetError(c, err, "get history failed")
		return
	}
	response.OK(c, history)
}

func (h *DatasetHandler) QueryLogs(c *gin.Context) {
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

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	logs, err := h.datasetService.QueryLogs(c.Request.Context(), userID, datasetID, limit)
	if err != nil {
		writeDatasetError(c, err, "list query logs failed")
		return
	}
	response.OK(c, logs)
}

func (h *DatasetHandler) Delete(c *gin.Context) {
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

	if err := h.datasetService.Delete(c.Request.Context(), userID, datasetID); err != nil {
		writeDatasetError(c, err, "delete dataset failed")
		return
	}
	response.OK(c, gin.H{"deleted_dataset_id": datasetID})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
