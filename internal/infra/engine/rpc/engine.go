// Package rpc implements the engine.Engine interface over a JSON-RPC
// connection to the procedure engine node. It discovers the procedure catalog
// at startup and exposes each procedure as a prepared call that yields a
// pollable run handle.
package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gabapcia/meshgate/internal/engine"
	"github.com/gabapcia/meshgate/internal/pkg/transport/jsonrpc"
)

// defaultPollInterval is how often run handles poll the node for status
// transitions while a run is in flight.
const defaultPollInterval = 2 * time.Second

// engineError is the coded failure object embedded in responses when the
// engine rejects an operation at the business level. Transport failures come
// back as JSON-RPC errors instead and are not translated here.
type engineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toEngineError converts the wire object into the boundary error type,
// returning nil when there is no error to report.
func (e *engineError) toEngineError() *engine.Error {
	if e == nil {
		return nil
	}

	return &engine.Error{
		Code:    engine.ErrorCode(e.Code),
		Message: e.Message,
	}
}

type (
	// procedureDescriptor is one entry of the node's procedure catalog.
	procedureDescriptor struct {
		Name   string `json:"name"`
		NoArgs bool   `json:"noArgs"`
	}

	// transactionDescriptor describes the transaction shape a prepared run
	// will produce.
	transactionDescriptor struct {
		Kind string   `json:"kind"`
		Tag  string   `json:"tag"`
		Tags []string `json:"tags"`
	}

	// prepareResponse is the node's answer to procedure_prepare.
	prepareResponse struct {
		RunID           string                `json:"runId"`
		Status          string                `json:"status"`
		Transaction     transactionDescriptor `json:"transaction"`
		MultiSigAddress string                `json:"multiSigAddress"`
		SupportsSubsidy bool                  `json:"supportsSubsidy"`
		Error           *engineError          `json:"error"`
	}
)

// toTxInfo converts the wire descriptor into the boundary transaction shape.
func (t transactionDescriptor) toTxInfo() engine.TxInfo {
	info := engine.TxInfo{Kind: engine.TxKind(t.Kind)}

	switch info.Kind {
	case engine.TxKindBatch:
		tags := make([]engine.Tag, len(t.Tags))
		for i, tag := range t.Tags {
			tags[i] = engine.Tag(tag)
		}
		info.Tags = tags
	default:
		info.Tag = engine.Tag(t.Tag)
	}

	return info
}

// client implements the engine.Engine interface over JSON-RPC.
type client struct {
	conn         jsonrpc.Client
	pollInterval time.Duration
	procedures   map[string]engine.Procedure
}

// Ensure client implements the engine.Engine interface at compile time.
var _ engine.Engine = (*client)(nil)

// Option is a functional option used to configure the engine client.
type Option func(*client)

// WithPollInterval overrides how often run handles poll the node for status
// changes.
func WithPollInterval(interval time.Duration) Option {
	return func(c *client) {
		c.pollInterval = interval
	}
}

// NewClient connects the engine boundary to a procedure engine node. It
// fetches the procedure catalog once; procedures added to the node afterwards
// are not visible until the gateway restarts.
func NewClient(ctx context.Context, conn jsonrpc.Client, opts ...Option) (*client, error) {
	c := &client{
		conn:         conn,
		pollInterval: defaultPollInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	data, err := conn.Fetch(ctx, "procedure_list")
	if err != nil {
		return nil, err
	}

	var descriptors []procedureDescriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, err
	}

	c.procedures = make(map[string]engine.Procedure, len(descriptors))
	for _, desc := range descriptors {
		c.procedures[desc.Name] = engine.Procedure{
			Name:   desc.Name,
			NoArgs: desc.NoArgs,
			Call:   c.prepareCall(desc.Name),
		}
	}

	return c, nil
}

// Procedure looks up a procedure in the discovered catalog.
func (c *client) Procedure(name string) (engine.Procedure, bool) {
	proc, ok := c.procedures[name]
	return proc, ok
}

// prepareCall builds the Call function for one catalog entry. The returned
// function asks the node to prepare a run and wraps the result in a handle.
func (c *client) prepareCall(name string) func(ctx context.Context, args json.RawMessage, opts engine.Options) (engine.Handle, error) {
	return func(ctx context.Context, args json.RawMessage, opts engine.Options) (engine.Handle, error) {
		params := map[string]any{
			"procedure": name,
			"signer":    opts.Signer,
		}
		if args != nil {
			params["args"] = args
		}
		if len(opts.Metadata) > 0 {
			params["metadata"] = opts.Metadata
		}

		data, err := c.conn.Fetch(ctx, "procedure_prepare", params)
		if err != nil {
			return nil, err
		}

		var res prepareResponse
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, err
		}

		if engineErr := res.Error.toEngineError(); engineErr != nil {
			return nil, engineErr
		}

		return newHandle(c.conn, res, c.pollInterval), nil
	}
}
