package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gabapcia/meshgate/internal/engine"
	"github.com/gabapcia/meshgate/internal/pkg/apperrors"
)

// ResourceLookup identifies the entity a procedure was resolving when it
// failed, so data-unavailable errors can report what was missing.
type ResourceLookup struct {
	ID       string
	Resource string
}

// invoke prepares a procedure through the engine, normalizing the two call
// signatures: procedures declaring no business arguments receive options
// alone. Engine failures are translated into the application taxonomy here
// and nowhere else.
func invoke(ctx context.Context, proc engine.Procedure, args json.RawMessage, opts engine.Options) (engine.Handle, error) {
	if proc.NoArgs {
		args = nil
	}

	handle, err := proc.Call(ctx, args, opts)
	if err != nil {
		return nil, mapEngineError(err, nil)
	}

	return handle, nil
}

// mapEngineError translates an engine failure into a typed application
// error. Errors that are already typed pass through unchanged, so nothing is
// ever wrapped twice.
func mapEngineError(err error, lookup *ResourceLookup) error {
	if _, ok := apperrors.From(err); ok {
		return err
	}

	var engErr *engine.Error
	if !errors.As(err, &engErr) {
		return apperrors.NewInternal(err.Error())
	}

	// the signing manager reports unknown signers under the general code
	if engErr.Code == engine.CodeGeneral && strings.Contains(engErr.Message, "not part of the Signing Manager") {
		return apperrors.NewValidation(engErr.Message)
	}

	switch engErr.Code {
	case engine.CodeNoDataChange, engine.CodeValidationError, engine.CodeEntityInUse:
		return apperrors.NewValidation(engErr.Message)
	case engine.CodeInsufficientBalance, engine.CodeUnmetPrerequisite, engine.CodeLimitExceeded:
		return apperrors.NewUnprocessable(engErr.Message)
	case engine.CodeDataUnavailable:
		if lookup != nil {
			return apperrors.NewNotFound(lookup.ID, lookup.Resource)
		}
		return apperrors.NewNotFound(engErr.Message, "")
	case engine.CodeNotAuthorized:
		return apperrors.NewUnauthorized(engErr.Message)
	default:
		return apperrors.NewInternal(engErr.Message)
	}
}
