package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getSubscriptionHandler returns one webhook subscription, with expiry
// reflected in its status.
// GET /v1/subscriptions/:id
func (s *Server) getSubscriptionHandler(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	sub, err := s.subscriptions.FindOne(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSubscriptionResponse(sub))
}
