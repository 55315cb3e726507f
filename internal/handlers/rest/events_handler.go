package rest

import (
	"net/http"
	"strconv"

	"github.com/gabapcia/meshgate/internal/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// parseID reads the numeric :id path parameter.
func parseID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidation("id must be a positive integer")
	}

	return id, nil
}

// getEventHandler returns one recorded event.
// GET /v1/events/:id
func (s *Server) getEventHandler(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	event, err := s.events.FindOne(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newEventResponse(event))
}
