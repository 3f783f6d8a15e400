package answer

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/salescope-lab/salescope/internal/core/errors"
	"github.com/salescope-lab/salescope/internal/core/storage"
)

// RegisterRoutes registers the chat route.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/chat", s.ChatHandler)
}

// ChatHandler handles POST /chat with form fields question (required) and
// collection (optional, defaults to the configured collection).
func (s *Service) ChatHandler(c *gin.Context) {
	question := strings.TrimSpace(c.PostForm("question"))
	if question == "" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "question form field is required",
		})
		return
	}
	collection := c.PostForm("collection")

	reply, err := s.Respond(c.Request.Context(), question, collection, time.Now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
				ErrorType: httperr.HttpBackendUnavailable,
				Message:   "Vector store unreachable",
				Details:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to answer question",
		})
		return
	}

	c.JSON(http.StatusOK, reply)
}
