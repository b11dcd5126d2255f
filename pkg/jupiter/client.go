// Package jupiter talks to the Jupiter swap aggregator's v6 HTTP API.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	QuotePath = "/v6/quote"
	SwapPath  = "/v6/swap"

	// DefaultBaseURL is the public Jupiter quote API.
	DefaultBaseURL = "https://quote-api.jup.ag"

	errorBodySnippetLen = 220
)

// ErrMissingSwapTransaction is reported when /v6/swap answers without a transaction.
var ErrMissingSwapTransaction = errors.New("swap transaction not returned from Jupiter")

// APIError describes a failed aggregator call.
type APIError struct {
	Op         string // "quote" or "swap"
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("jupiter %s http %d: %s", e.Op, e.StatusCode, e.Body)
	}
	if e.Body != "" {
		return fmt.Sprintf("jupiter %s: %v. body=%s", e.Op, e.Err, e.Body)
	}
	return fmt.Sprintf("jupiter %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Options configures Client.
type Options struct {
	BaseURL      string
	QuoteTimeout time.Duration
	SwapTimeout  time.Duration
	// RateLimit caps outbound requests per second; 0 disables limiting.
	RateLimit  float64
	HTTPClient *http.Client
}

// DefaultOptions returns the public endpoint with the 15s quote and 20s swap timeouts.
func DefaultOptions() Options {
	return Options{
		BaseURL:      DefaultBaseURL,
		QuoteTimeout: 15 * time.Second,
		SwapTimeout:  20 * time.Second,
	}
}

// Client is safe for concurrent use. It carries no per-request state.
type Client struct {
	base         string
	http         *http.Client
	limiter      *rate.Limiter
	quoteTimeout time.Duration
	swapTimeout  time.Duration
}

// NewClient creates a Client. Zero option fields take DefaultOptions values.
func NewClient(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.QuoteTimeout <= 0 {
		opts.QuoteTimeout = defaults.QuoteTimeout
	}
	if opts.SwapTimeout <= 0 {
		opts.SwapTimeout = defaults.SwapTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	c := &Client{
		base:         strings.TrimRight(opts.BaseURL, "/"),
		http:         opts.HTTPClient,
		quoteTimeout: opts.QuoteTimeout,
		swapTimeout:  opts.SwapTimeout,
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// BaseURL returns the normalized aggregator base URL.
func (c *Client) BaseURL() string {
	return c.base
}

// QuoteParams are the query parameters of GET /v6/quote.
type QuoteParams struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // smallest units
	SlippageBps int
	SwapMode    string // omitted when empty
}

func (p QuoteParams) values() url.Values {
	q := url.Values{}
	q.Set("inputMint", p.InputMint)
	q.Set("outputMint", p.OutputMint)
	q.Set("amount", strconv.FormatUint(p.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(p.SlippageBps))
	if p.SwapMode != "" {
		q.Set("swapMode", p.SwapMode)
	}
	return q
}

// GetQuote fetches a quote and returns it untouched so it can be forwarded
// to BuildSwap and echoed back to the caller.
func (c *Client) GetQuote(ctx context.Context, p QuoteParams) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.quoteTimeout)
	defer cancel()

	u := c.base + QuotePath + "?" + p.values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Op: "quote", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "quote")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &APIError{Op: "quote", Err: errors.New("response is not valid JSON"), Body: snippet(body)}
	}
	return json.RawMessage(body), nil
}

// SwapParams are the caller-controlled parts of POST /v6/swap.
type SwapParams struct {
	Quote           json.RawMessage
	UserPublicKey   string
	DynamicSlippage json.RawMessage // forwarded verbatim when non-nil
}

type swapRequest struct {
	QuoteResponse     json.RawMessage `json:"quoteResponse"`
	UserPublicKey     string          `json:"userPublicKey"`
	WrapAndUnwrapSol  bool            `json:"wrapAndUnwrapSol"`
	UseSharedAccounts bool            `json:"useSharedAccounts"`
	DynamicSlippage   json.RawMessage `json:"dynamicSlippage,omitempty"`
}

// SwapTransaction is the part of the /v6/swap response the executor needs.
type SwapTransaction struct {
	SwapTransaction           string `json:"swapTransaction"` // base64, unsigned
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports"`
}

// BuildSwap asks Jupiter for a ready-to-sign transaction for quote.
func (c *Client) BuildSwap(ctx context.Context, p SwapParams) (*SwapTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.swapTimeout)
	defer cancel()

	payload, err := json.Marshal(swapRequest{
		QuoteResponse:     p.Quote,
		UserPublicKey:     p.UserPublicKey,
		WrapAndUnwrapSol:  true,
		UseSharedAccounts: true,
		DynamicSlippage:   p.DynamicSlippage,
	})
	if err != nil {
		return nil, &APIError{Op: "swap", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+SwapPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &APIError{Op: "swap", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "swap")
	if err != nil {
		return nil, err
	}

	var out SwapTransaction
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &APIError{Op: "swap", Err: err, Body: snippet(body)}
	}
	if strings.TrimSpace(out.SwapTransaction) == "" {
		return nil, &APIError{Op: "swap", Err: ErrMissingSwapTransaction}
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, &APIError{Op: op, Err: err}
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	return body, nil
}

func snippet(body []byte) string {
	runes := []rune(strings.TrimSpace(string(body)))
	if len(runes) > errorBodySnippetLen {
		runes = runes[:errorBodySnippetLen]
	}
	return string(runes)
}
