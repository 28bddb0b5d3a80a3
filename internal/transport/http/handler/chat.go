package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-data-analyst/internal/app"
	"ai-data-analyst/internal/transport/http/response"
)

type ChatHandler struct {
	analystService *app.AnalystService
}

type ChatRequest struct {
	DatasetID uint   `json:"dataset_id" binding:"required,gt=0"`
	Question  string `json:"question" binding:"required"`
}

func NewChatHandler(analystService *app.AnalystService) *ChatHandler {
	return &ChatHandler{analystService: analystService}
}

// Ask always answers 200 once the dataset is resolved; pipeline failures
// are carried in the answer text.
func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.analystService.Ask(c.Request.Context(), app.AskInput{
		UserID:    userID,
		DatasetID: req.DatasetID,
		Question:  req.Question,
	})
	if err != nil {
		if errors.Is(err, app.ErrQuestionEmpty) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			return
		}
		writeDatasetError(c, err, "answer question failed")
		return
	}

	response.OK(c, result)
}
