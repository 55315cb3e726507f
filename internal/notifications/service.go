// Package notifications delivers webhook payloads to subscriber URLs with
// bounded retries, and performs the handshake that validates a new
// subscription before it is activated. Delivery happens on a background
// worker so the event-recording critical path is never blocked; exhausting
// retries is operational noise, logged and dropped, never a client-facing
// failure.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gabapcia/meshgate/internal/pkg/logger"
	"github.com/gabapcia/meshgate/internal/pkg/resilience/retry"
	"github.com/gabapcia/meshgate/internal/pkg/x/chflow"
	"github.com/gabapcia/meshgate/internal/subscriptions"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrServiceAlreadyStarted is returned if Start is called more than once.
	ErrServiceAlreadyStarted = errors.New("service already started")

	// ErrServiceNotStarted is returned by Enqueue before Start has been called.
	ErrServiceNotStarted = errors.New("service not started")

	// ErrHandshakeChallengeMismatch indicates the subscriber answered the
	// handshake but echoed the wrong secret.
	ErrHandshakeChallengeMismatch = errors.New("handshake challenge mismatch")
)

// notificationChannelBufferSize bounds how many deliveries can be queued
// before Enqueue blocks.
const notificationChannelBufferSize = 64

// legitimacyHeader carries the subscription's legitimacy secret on every
// webhook request, so receivers can verify the sender.
const legitimacyHeader = "X-Legitimacy-Secret"

// Dispatcher is the notification delivery entrypoint.
type Dispatcher interface {
	// Start launches the background delivery worker. It returns
	// ErrServiceAlreadyStarted if called more than once. Call Close to stop.
	Start(ctx context.Context) error

	// Close stops the delivery worker. It is safe to call even if the
	// dispatcher was never started.
	Close()

	// Enqueue hands notifications to the delivery worker. It blocks only
	// while the internal queue is full, and returns the context error if ctx
	// is done before every notification is queued.
	Enqueue(ctx context.Context, batch ...Notification) error

	// Handshake posts a challenge carrying the legitimacy secret to the
	// webhook URL and expects the secret echoed back in a 2xx response,
	// retrying up to the configured number of attempts with a fixed
	// interval.
	Handshake(ctx context.Context, webhookURL, legitimacySecret string) error
}

type dispatcher struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc func()

	httpClient     *retryablehttp.Client
	handshakeRetry retry.Retry

	workerCtx       context.Context
	notificationsCh chan Notification
}

var (
	_ Dispatcher               = (*dispatcher)(nil)
	_ subscriptions.Handshaker = (*dispatcher)(nil)
)

// New creates a dispatcher. httpClient governs notification delivery retries
// (attempts and wait between them); handshakeRetry governs handshake
// attempts.
func New(httpClient *retryablehttp.Client, handshakeRetry retry.Retry) *dispatcher {
	return &dispatcher{
		httpClient:     httpClient,
		handshakeRetry: handshakeRetry,
	}
}

func (d *dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isStarted {
		return ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)

	d.workerCtx = ctx
	d.notificationsCh = make(chan Notification, notificationChannelBufferSize)
	go d.deliverLoop(ctx, d.notificationsCh)

	d.closeFunc = cancel
	d.isStarted = true
	return nil
}

func (d *dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closeFunc != nil {
		d.closeFunc()
	}

	d.closeFunc = nil
	d.isStarted = false
}

func (d *dispatcher) Enqueue(ctx context.Context, batch ...Notification) error {
	d.mu.Lock()
	ch, workerCtx, started := d.notificationsCh, d.workerCtx, d.isStarted
	d.mu.Unlock()

	if !started {
		return ErrServiceNotStarted
	}

	for _, notification := range batch {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-workerCtx.Done():
			// the worker stopped while we were queueing; nobody will ever
			// drain the channel, so give up instead of blocking
			return ErrServiceNotStarted
		case ch <- notification:
		}
	}

	return nil
}

// deliverLoop consumes queued notifications until ctx is canceled. Each
// delivery failure is logged and dropped; it must never stop the loop.
func (d *dispatcher) deliverLoop(ctx context.Context, ch <-chan Notification) {
	for {
		notification, ok := chflow.Receive(ctx, ch)
		if !ok {
			return
		}

		d.deliver(ctx, notification)
	}
}

// deliver posts one notification to its subscriber. The HTTP client retries
// non-2xx responses and transport failures up to its configured maximum;
// exhausting retries does not alter the subscription in any way.
func (d *dispatcher) deliver(ctx context.Context, notification Notification) {
	body, err := json.Marshal(webhookBody{
		Type:           notification.Type,
		Scope:          notification.Scope,
		SubscriptionID: notification.SubscriptionID,
		Nonce:          notification.Nonce,
		Payload:        notification.Payload,
	})
	if err != nil {
		logger.Error(ctx, "failed to encode notification",
			"subscription.id", notification.SubscriptionID,
			"event.id", notification.EventID,
			"error", err,
		)
		return
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, notification.WebhookURL, bytes.NewReader(body))
	if err != nil {
		logger.Error(ctx, "failed to build notification request",
			"subscription.id", notification.SubscriptionID,
			"event.id", notification.EventID,
			"error", err,
		)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(legitimacyHeader, notification.LegitimacySecret)

	res, err := d.httpClient.Do(req)
	if res != nil {
		io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}
	if err != nil {
		logger.Error(ctx, "notification delivery failed",
			"subscription.id", notification.SubscriptionID,
			"event.id", notification.EventID,
			"notification.nonce", notification.Nonce,
			"error", err,
		)
	}
}

func (d *dispatcher) Handshake(ctx context.Context, webhookURL, legitimacySecret string) error {
	challenge, err := json.Marshal(handshakeBody{Handshake: legitimacySecret})
	if err != nil {
		return err
	}

	return d.handshakeRetry.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(challenge))
		if err != nil {
			return err
		}

		req.Header.Set("Content-Type", "application/json")

		// each attempt uses the bare HTTP client: the handshake retry
		// schedule is owned by handshakeRetry, not by retryablehttp
		res, err := d.httpClient.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
			return fmt.Errorf("handshake returned status %d", res.StatusCode)
		}

		var echo handshakeBody
		if err := json.NewDecoder(res.Body).Decode(&echo); err != nil {
			return err
		}

		if echo.Handshake != legitimacySecret {
			return ErrHandshakeChallengeMismatch
		}

		return nil
	})
}
