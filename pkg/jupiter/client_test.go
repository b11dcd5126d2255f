package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleQuote = `{"inputMint":"So11111111111111111111111111111111111111112","outputMint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","inAmount":"1000000","outAmount":"171234","otherAmountThreshold":"170378","swapMode":"ExactIn","slippageBps":50,"priceImpactPct":"0.0001","routePlan":[{"percent":100}]}`

func TestGetQuoteQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, QuotePath, r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "AAA", q.Get("inputMint"))
		require.Equal(t, "BBB", q.Get("outputMint"))
		require.Equal(t, "1000000", q.Get("amount"))
		require.Equal(t, "50", q.Get("slippageBps"))
		require.Equal(t, "ExactOut", q.Get("swapMode"))
		_, _ = io.WriteString(w, sampleQuote)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL + "/", HTTPClient: server.Client()})
	quote, err := client.GetQuote(context.Background(), QuoteParams{
		InputMint: "AAA", OutputMint: "BBB", Amount: 1_000_000, SlippageBps: 50, SwapMode: "ExactOut",
	})
	require.NoError(t, err)
	require.JSONEq(t, sampleQuote, string(quote))
}

func TestGetQuoteOmitsSwapMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["swapMode"]
		require.False(t, present)
		_, _ = io.WriteString(w, sampleQuote)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	_, err := client.GetQuote(context.Background(), QuoteParams{InputMint: "A", OutputMint: "B", Amount: 1, SlippageBps: 50})
	require.NoError(t, err)
}

func TestGetQuoteHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Could not find any route"}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	_, err := client.GetQuote(context.Background(), QuoteParams{InputMint: "A", OutputMint: "B", Amount: 1})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "quote", apiErr.Op)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Contains(t, err.Error(), "Could not find any route")
}

func TestGetQuoteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Options{BaseURL: server.URL, QuoteTimeout: 50 * time.Millisecond})
	_, err := client.GetQuote(context.Background(), QuoteParams{InputMint: "A", OutputMint: "B", Amount: 1})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestBuildSwapPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, SwapPath, r.URL.Path)

		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.JSONEq(t, sampleQuote, string(body["quoteResponse"]))
		require.JSONEq(t, `"Owner111"`, string(body["userPublicKey"]))
		require.JSONEq(t, `true`, string(body["wrapAndUnwrapSol"]))
		require.JSONEq(t, `true`, string(body["useSharedAccounts"]))
		require.JSONEq(t, `{"maxBps":300}`, string(body["dynamicSlippage"]))

		_, _ = io.WriteString(w, `{"swapTransaction":"AQID","lastValidBlockHeight":42}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	tx, err := client.BuildSwap(context.Background(), SwapParams{
		Quote:           json.RawMessage(sampleQuote),
		UserPublicKey:   "Owner111",
		DynamicSlippage: json.RawMessage(`{"maxBps":300}`),
	})
	require.NoError(t, err)
	require.Equal(t, "AQID", tx.SwapTransaction)
	require.EqualValues(t, 42, tx.LastValidBlockHeight)
}

func TestBuildSwapOmitsDynamicSlippage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, present := body["dynamicSlippage"]
		require.False(t, present)
		_, _ = io.WriteString(w, `{"swapTransaction":"AQID"}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	_, err := client.BuildSwap(context.Background(), SwapParams{Quote: json.RawMessage(sampleQuote), UserPublicKey: "x"})
	require.NoError(t, err)
}

func TestBuildSwapMissingTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"lastValidBlockHeight":1}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	_, err := client.BuildSwap(context.Background(), SwapParams{Quote: json.RawMessage(sampleQuote), UserPublicKey: "x"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingSwapTransaction))
}

func TestRateLimitedClientStillServes(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = io.WriteString(w, sampleQuote)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, RateLimit: 100})
	for i := 0; i < 3; i++ {
		_, err := client.GetQuote(context.Background(), QuoteParams{InputMint: "A", OutputMint: "B", Amount: 1})
		require.NoError(t, err)
	}
	require.Equal(t, 3, hits)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(json.RawMessage(sampleQuote))
	require.NoError(t, err)
	require.Equal(t, "1000000", s.InAmount.String())
	require.Equal(t, "171234", s.OutAmount.String())
	require.Equal(t, "170378", s.OtherAmountThreshold.String())
	require.Equal(t, 50, s.SlippageBps)
	require.Equal(t, 1, s.Hops)

	_, err = Summarize(json.RawMessage(`{"outAmount":"-5"}`))
	require.Error(t, err)
}
