package rest

import (
	"encoding/json"
	"time"

	"github.com/gabapcia/meshgate/internal/events"
	"github.com/gabapcia/meshgate/internal/subscriptions"
	"github.com/gabapcia/meshgate/internal/transactions"
)

// submissionOptions is the block of processing settings shared by every
// procedure endpoint.
type submissionOptions struct {
	ProcessMode      string            `json:"processMode" validate:"required,oneof=submit dryRun offline"`
	Signer           string            `json:"signer"`
	WebhookURL       string            `json:"webhookUrl" validate:"omitempty,url"`
	LegitimacySecret string            `json:"legitimacySecret"`
	Metadata         map[string]string `json:"metadata"`
}

// toOptions converts the wire options into the domain form.
func (o submissionOptions) toOptions() transactions.Options {
	return transactions.Options{
		Mode:             transactions.ProcessMode(o.ProcessMode),
		Signer:           o.Signer,
		WebhookURL:       o.WebhookURL,
		LegitimacySecret: o.LegitimacySecret,
		Metadata:         o.Metadata,
	}
}

type (
	// createAssetRequest creates a new asset through the engine's
	// asset-creation procedure.
	createAssetRequest struct {
		Options      submissionOptions `json:"options" validate:"required"`
		Name         string            `json:"name" validate:"required"`
		Ticker       string            `json:"ticker" validate:"required"`
		AssetType    string            `json:"assetType" validate:"required"`
		Divisible    bool              `json:"divisible"`
		FundingRound string            `json:"fundingRound"`
	}

	// createAssetArgs is the argument object forwarded to the engine.
	createAssetArgs struct {
		Name         string `json:"name"`
		Ticker       string `json:"ticker"`
		AssetType    string `json:"assetType"`
		Divisible    bool   `json:"divisible"`
		FundingRound string `json:"fundingRound,omitempty"`
	}
)

func (r createAssetRequest) args() createAssetArgs {
	return createAssetArgs{
		Name:         r.Name,
		Ticker:       r.Ticker,
		AssetType:    r.AssetType,
		Divisible:    r.Divisible,
		FundingRound: r.FundingRound,
	}
}

type (
	// instructionLeg is one transfer inside a settlement instruction.
	instructionLeg struct {
		From   string `json:"from" validate:"required"`
		To     string `json:"to" validate:"required"`
		Asset  string `json:"asset" validate:"required"`
		Amount string `json:"amount" validate:"required"`
	}

	// addInstructionRequest registers a settlement instruction on a venue.
	addInstructionRequest struct {
		Options submissionOptions `json:"options" validate:"required"`
		VenueID string            `json:"venueId" validate:"required"`
		Legs    []instructionLeg  `json:"legs" validate:"required,min=1,dive"`
		Memo    string            `json:"memo"`
	}

	// addInstructionArgs is the argument object forwarded to the engine.
	addInstructionArgs struct {
		VenueID string           `json:"venueId"`
		Legs    []instructionLeg `json:"legs"`
		Memo    string           `json:"memo,omitempty"`
	}
)

func (r addInstructionRequest) args() addInstructionArgs {
	return addInstructionArgs{
		VenueID: r.VenueID,
		Legs:    r.Legs,
		Memo:    r.Memo,
	}
}

// eventResponse is the wire shape of one recorded event.
type eventResponse struct {
	ID        uint64          `json:"id"`
	Type      string          `json:"type"`
	Scope     string          `json:"scope"`
	Payload   json.RawMessage `json:"payload"`
	Processed bool            `json:"processed"`
	CreatedAt time.Time       `json:"createdAt"`
}

func newEventResponse(event events.Event) eventResponse {
	return eventResponse{
		ID:        event.ID,
		Type:      event.Type,
		Scope:     event.Scope,
		Payload:   event.Payload,
		Processed: event.Processed,
		CreatedAt: event.CreatedAt,
	}
}

// subscriptionResponse is the wire shape of one webhook subscription. The
// legitimacy secret is never exposed.
type subscriptionResponse struct {
	ID         uint64     `json:"id"`
	EventType  string     `json:"eventType"`
	EventScope string     `json:"eventScope"`
	WebhookURL string     `json:"webhookUrl"`
	Status     string     `json:"status"`
	Nonce      uint64     `json:"nonce"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

func newSubscriptionResponse(sub subscriptions.Subscription) subscriptionResponse {
	res := subscriptionResponse{
		ID:         sub.ID,
		EventType:  sub.EventType,
		EventScope: sub.EventScope,
		WebhookURL: sub.WebhookURL,
		Status:     string(sub.Status),
		Nonce:      sub.Nonce,
		CreatedAt:  sub.CreatedAt,
	}
	if !sub.ExpiresAt.IsZero() {
		expiresAt := sub.ExpiresAt
		res.ExpiresAt = &expiresAt
	}

	return res
}
