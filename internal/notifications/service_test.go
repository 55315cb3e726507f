package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gabapcia/meshgate/internal/pkg/logger"
	"github.com/gabapcia/meshgate/internal/pkg/resilience/retry"
	transporthttp "github.com/gabapcia/meshgate/internal/pkg/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// newTestDispatcher builds a dispatcher with fast retry settings suitable for
// tests.
func newTestDispatcher() *dispatcher {
	httpClient := transporthttp.NewClient(
		transporthttp.WithTimeout(time.Second),
		transporthttp.WithRetryMax(2),
		transporthttp.WithRetryWaitMin(time.Millisecond),
		transporthttp.WithRetryWaitMax(5*time.Millisecond),
		transporthttp.WithCheckRetry(transporthttp.RetryOnNonSuccess),
	)
	handshakeRetry := retry.New(
		retry.WithAttempts(3),
		retry.WithDelay(time.Millisecond),
		retry.WithFixedDelay(),
	)

	return New(httpClient, handshakeRetry)
}

func TestLifecycle(t *testing.T) {
	t.Run("should refuse to start twice", func(t *testing.T) {
		d := newTestDispatcher()

		require.NoError(t, d.Start(t.Context()))
		defer d.Close()

		assert.ErrorIs(t, d.Start(t.Context()), ErrServiceAlreadyStarted)
	})

	t.Run("should refuse to enqueue before starting", func(t *testing.T) {
		d := newTestDispatcher()

		err := d.Enqueue(t.Context(), Notification{})

		assert.ErrorIs(t, err, ErrServiceNotStarted)
	})

	t.Run("should refuse to enqueue after closing", func(t *testing.T) {
		d := newTestDispatcher()

		require.NoError(t, d.Start(t.Context()))
		d.Close()

		err := d.Enqueue(t.Context(), Notification{})

		assert.ErrorIs(t, err, ErrServiceNotStarted)
	})

	t.Run("should tolerate closing without having started", func(t *testing.T) {
		d := newTestDispatcher()

		assert.NotPanics(t, d.Close)
	})

	t.Run("should release a blocked enqueue when the dispatcher closes", func(t *testing.T) {
		release := make(chan struct{})

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		d := newTestDispatcher()
		require.NoError(t, d.Start(t.Context()))

		// the worker is stuck on the hanging subscriber, so the queue fills
		// up and the enqueue blocks on the channel send
		errCh := make(chan error, 1)
		go func() {
			batch := make([]Notification, notificationChannelBufferSize+2)
			for i := range batch {
				batch[i] = Notification{WebhookURL: srv.URL, Payload: json.RawMessage(`{}`)}
			}
			errCh <- d.Enqueue(context.Background(), batch...)
		}()

		time.Sleep(50 * time.Millisecond)
		d.Close()

		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, ErrServiceNotStarted)
		case <-time.After(5 * time.Second):
			t.Fatal("enqueue stayed blocked after close")
		}
	})
}

func TestDelivery(t *testing.T) {
	t.Run("should post the notification body with the legitimacy header", func(t *testing.T) {
		received := make(chan *http.Request, 1)
		bodies := make(chan webhookBody, 1)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body webhookBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			received <- r
			bodies <- body
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		d := newTestDispatcher()
		require.NoError(t, d.Start(t.Context()))
		defer d.Close()

		err := d.Enqueue(t.Context(), Notification{
			SubscriptionID:   7,
			EventID:          3,
			Type:             "transaction.update",
			Scope:            "0",
			Nonce:            2,
			WebhookURL:       srv.URL,
			LegitimacySecret: "secret",
			Payload:          json.RawMessage(`{"status":"Running"}`),
		})
		require.NoError(t, err)

		select {
		case req := <-received:
			assert.Equal(t, "secret", req.Header.Get("X-Legitimacy-Secret"))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		case <-time.After(5 * time.Second):
			t.Fatal("notification was never delivered")
		}

		body := <-bodies
		assert.Equal(t, "transaction.update", body.Type)
		assert.Equal(t, "0", body.Scope)
		assert.Equal(t, uint64(7), body.SubscriptionID)
		assert.Equal(t, uint64(2), body.Nonce)
		assert.JSONEq(t, `{"status":"Running"}`, string(body.Payload))
	})

	t.Run("should retry non-2xx responses until the subscriber accepts", func(t *testing.T) {
		var attempts atomic.Int32
		done := make(chan struct{})

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			close(done)
		}))
		defer srv.Close()

		d := newTestDispatcher()
		require.NoError(t, d.Start(t.Context()))
		defer d.Close()

		err := d.Enqueue(t.Context(), Notification{
			SubscriptionID: 1,
			WebhookURL:     srv.URL,
			Payload:        json.RawMessage(`{}`),
		})
		require.NoError(t, err)

		select {
		case <-done:
			assert.Equal(t, int32(3), attempts.Load())
		case <-time.After(5 * time.Second):
			t.Fatal("delivery retries never reached the subscriber")
		}
	})
}

func TestHandshake(t *testing.T) {
	t.Run("should accept a subscriber echoing the secret", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var challenge handshakeBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&challenge))
			assert.Equal(t, "secret", challenge.Handshake)

			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(handshakeBody{Handshake: challenge.Handshake})
		}))
		defer srv.Close()

		d := newTestDispatcher()

		assert.NoError(t, d.Handshake(t.Context(), srv.URL, "secret"))
	})

	t.Run("should reject a subscriber echoing the wrong secret", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(handshakeBody{Handshake: "wrong"})
		}))
		defer srv.Close()

		d := newTestDispatcher()

		err := d.Handshake(t.Context(), srv.URL, "secret")

		assert.ErrorIs(t, err, ErrHandshakeChallengeMismatch)
	})

	t.Run("should retry until the subscriber answers", func(t *testing.T) {
		var attempts atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(handshakeBody{Handshake: "secret"})
		}))
		defer srv.Close()

		d := newTestDispatcher()

		require.NoError(t, d.Handshake(t.Context(), srv.URL, "secret"))
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("should fail once the attempts are exhausted", func(t *testing.T) {
		var attempts atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		d := newTestDispatcher()

		err := d.Handshake(t.Context(), srv.URL, "secret")

		require.Error(t, err)
		assert.Equal(t, int32(3), attempts.Load(), "the handshake is bounded by the configured attempts")
	})
}
