package rest

import (
	"encoding/json"
	"fmt"

	"github.com/gabapcia/meshgate/internal/pkg/apperrors"
	"github.com/gabapcia/meshgate/internal/pkg/validation"

	"github.com/gin-gonic/gin"
)

// Engine procedure names behind the domain endpoints.
const (
	procedureCreateAsset    = "asset.createAsset"
	procedureAddInstruction = "settlement.addInstruction"
)

// createAssetHandler submits the asset-creation procedure.
// POST /v1/assets
func (s *Server) createAssetHandler(c *gin.Context) {
	var req createAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidation(err.Error()))
		return
	}

	if err := validation.Validate(req); err != nil {
		respondError(c, apperrors.NewValidation(err.Error()))
		return
	}

	s.process(c, procedureCreateAsset, req.args(), req.Options)
}

// addInstructionHandler submits the settlement-instruction procedure.
// POST /v1/settlements/instructions
func (s *Server) addInstructionHandler(c *gin.Context) {
	var req addInstructionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidation(err.Error()))
		return
	}

	if err := validation.Validate(req); err != nil {
		respondError(c, apperrors.NewValidation(err.Error()))
		return
	}

	s.process(c, procedureAddInstruction, req.args(), req.Options)
}

// process looks up the named procedure, forwards it to the transaction
// service with the marshalled arguments and writes whichever outcome shape
// comes back.
func (s *Server) process(c *gin.Context, procedureName string, args any, opts submissionOptions) {
	proc, ok := s.engine.Procedure(procedureName)
	if !ok {
		respondError(c, apperrors.NewInternal(fmt.Sprintf("procedure %q is not available on the engine", procedureName)))
		return
	}

	raw, err := json.Marshal(args)
	if err != nil {
		respondError(c, apperrors.NewInternal(err.Error()))
		return
	}

	outcome, err := s.transactions.Process(c.Request.Context(), proc, raw, opts.toOptions())
	if err != nil {
		respondError(c, err)
		return
	}

	respondOutcome(c, outcome)
}
