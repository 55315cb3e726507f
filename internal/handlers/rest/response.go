package rest

import (
	"net/http"

	"github.com/gabapcia/meshgate/internal/pkg/apperrors"
	"github.com/gabapcia/meshgate/internal/pkg/logger"
	"github.com/gabapcia/meshgate/internal/transactions"

	"github.com/gin-gonic/gin"
)

// errorResponse is the wire shape of every error the gateway reports.
// Resource and ID are only present on not-found errors.
type errorResponse struct {
	Message  string `json:"message"`
	Resource string `json:"resource,omitempty"`
	ID       string `json:"id,omitempty"`
}

// respondError translates an application error into its HTTP status. Errors
// outside the taxonomy are treated as internal and their details are kept out
// of the response body.
func respondError(c *gin.Context, err error) {
	appErr, ok := apperrors.From(err)
	if !ok {
		logger.Error(c.Request.Context(), "unhandled error reached the http surface",
			"http.path", c.Request.URL.Path,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindUnauthorized:
		status = http.StatusForbidden
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindUnprocessable:
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, errorResponse{
		Message:  appErr.Message,
		Resource: appErr.Resource,
		ID:       appErr.ID,
	})
}

// respondOutcome writes whichever of the three outcome shapes the transaction
// service produced. A webhook submission is acknowledged with 202 since the
// run continues in the background.
func respondOutcome(c *gin.Context, outcome transactions.Outcome) {
	switch {
	case outcome.Receipt != nil:
		c.JSON(http.StatusAccepted, outcome.Receipt)
	case outcome.Payload != nil:
		c.JSON(http.StatusOK, outcome.Payload)
	default:
		c.JSON(http.StatusOK, outcome.Result)
	}
}
