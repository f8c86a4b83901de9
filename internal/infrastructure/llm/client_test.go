package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/cartmatch/reconciler/internal/domain"
)

// fakeCompleter scripts chat completion outcomes, one per call, repeating the
// last entry once the script runs out.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	content string
	err     error
	empty   bool
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	r := f.responses[idx]

	if r.err != nil {
		return openai.ChatCompletionResponse{}, r.err
	}
	if r.empty {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: r.content}},
		},
	}, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newTestClient builds a client with effectively unlimited rate and a
// millisecond backoff so retry behavior is observable without real waiting.
func newTestClient(api chatCompleter) *Client {
	c := NewClient(Config{
		APIKey:           "test-key",
		MatchRate:        rate.Inf,
		MatchBurst:       1,
		MatchAttempts:    3,
		MatchBackoffBase: time.Millisecond,
		InferRate:        rate.Inf,
		InferBurst:       1,
		InferAttempts:    5,
		InferBackoffBase: time.Millisecond,
	}, nil)
	c.api = api
	return c
}

func TestMatchProducts(t *testing.T) {
	storeA := []domain.Product{{ProductID: "a1", ProductName: "Acme Cola", Price: 5}}
	storeB := []domain.Product{{SKU: "b1", ProductName: "Acme Cola 2L", Price: 6}}

	t.Run("returns parsed pairs on success", func(t *testing.T) {
		api := &fakeCompleter{responses: []fakeResponse{
			{content: `[{"product_a_id":"a1","product_b_id":"b1"}]`},
		}}
		client := newTestClient(api)

		pairs, err := client.MatchProducts(context.Background(), "ACME", storeA, storeB)

		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "a1", pairs[0].ProductAID)
		assert.Equal(t, 1, api.callCount())
	})

	t.Run("unparseable response is an empty result, not an error", func(t *testing.T) {
		api := &fakeCompleter{responses: []fakeResponse{
			{content: "I could not find any matches, sorry!"},
		}}
		client := newTestClient(api)

		pairs, err := client.MatchProducts(context.Background(), "ACME", storeA, storeB)

		require.NoError(t, err)
		assert.Empty(t, pairs)
		assert.Equal(t, 1, api.callCount())
	})

	t.Run("transient errors are retried until the attempt budget runs out", func(t *testing.T) {
		api := &fakeCompleter{responses: []fakeResponse{
			{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limited"}},
		}}
		client := newTestClient(api)

		_, err := client.MatchProducts(context.Background(), "ACME", storeA, storeB)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAttemptsExhausted)
		assert.Equal(t, 3, api.callCount())
	})

	t.Run("recovers when a retry succeeds", func(t *testing.T) {
		api := &fakeCompleter{responses: []fakeResponse{
			{err: &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "oops"}},
			{content: `[{"product_a_id":"a1","product_b_id":"b1"}]`},
		}}
		client := newTestClient(api)

		pairs, err := client.MatchProducts(context.Background(), "ACME", storeA, storeB)

		require.NoError(t, err)
		assert.Len(t, pairs, 1)
		assert.Equal(t, 2, api.callCount())
	})

	t.Run("empty-choice responses are retried", func(t *testing.T) {
		api := &fakeCompleter{responses: []fakeResponse{
			{empty: true},
			{content: `[]`},
		}}
		client := newTestClient(api)

		pairs, err := client.MatchProducts(context.Background(), "ACME", storeA, storeB)

		require.NoError(t, err)
		assert.Empty(t, pairs)
		assert.Equal(t, 2, api.callCount())
	})

	t.Run("non-transient errors fail immediately", func(t *testing.T) {
		api := &fakeCompleter{responses: []fakeResponse{
			{err: errors.New("client misconfigured")},
		}}
		client := newTestClient(api)

		_, err := client.MatchProducts(context.Background(), "ACME", storeA, storeB)

		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrAttemptsExhausted)
		assert.Equal(t, 1, api.callCount())
	})

	t.Run("cancellation stops the retry loop", func(t *testing.T) {
		api := &fakeCompleter{responses: []fakeResponse{
			{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}},
		}}
		client := newTestClient(api)
		client.matchBackoffBase = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := client.MatchProducts(ctx, "ACME", storeA, storeB)
			done <- err
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("retry loop did not stop on cancellation")
		}
	})
}

func TestInferBrands(t *testing.T) {
	products := []domain.Product{{SKU: "b1", ProductName: "Acme Cola"}}

	t.Run("returns the parsed brand map", func(t *testing.T) {
		api := &fakeCompleter{responses: []fakeResponse{
			{content: `{"b1":"ACME"}`},
		}}
		client := newTestClient(api)

		brands, err := client.InferBrands(context.Background(), products, []string{"ACME"})

		require.NoError(t, err)
		assert.Equal(t, "ACME", brands["b1"])
	})

	t.Run("uses the inference attempt budget", func(t *testing.T) {
		api := &fakeCompleter{responses: []fakeResponse{
			{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}},
		}}
		client := newTestClient(api)

		_, err := client.InferBrands(context.Background(), products, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAttemptsExhausted)
		assert.Equal(t, 5, api.callCount())
	})
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"api error", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true},
		{"request error", &openai.RequestError{HTTPStatusCode: http.StatusBadGateway}, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"empty choices", errNoChoices, true},
		{"arbitrary error", errors.New("boom"), false},
		{"cancellation", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}
