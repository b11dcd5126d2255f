package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClosed is returned to waiters when the connection goes away before
// their notification arrives.
var ErrClosed = errors.New("websocket connection closed")

// WebSocketClient watches transaction signatures over a Solana pubsub
// connection.
type WebSocketClient struct {
	url    string
	conn   *websocket.Conn
	logger *zap.Logger

	mu            sync.Mutex
	writeMu       sync.Mutex
	subscriptions map[uint64]*Subscription
	nextID        uint64
	closed        bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscription tracks one signatureSubscribe request.
type Subscription struct {
	ID        uint64
	Signature string
	SubID     uint64 // node-assigned subscription ID
	updates   chan SignatureUpdate
}

// SignatureUpdate is the outcome of a signature subscription. Err is set when
// the subscription itself failed; TxErr carries the on-chain error, if any.
type SignatureUpdate struct {
	Slot  uint64
	TxErr json.RawMessage
	Err   error
}

// Failed reports whether the transaction landed with an error.
func (u SignatureUpdate) Failed() bool {
	return len(u.TxErr) > 0 && string(u.TxErr) != "null"
}

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NotificationMessage represents a subscription notification
type NotificationMessage struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  NotificationParams `json:"params"`
}

type NotificationParams struct {
	Result       SignatureNotification `json:"result"`
	Subscription uint64                `json:"subscription"`
}

type SignatureNotification struct {
	Context Context        `json:"context"`
	Value   SignatureValue `json:"value"`
}

// Context contains slot information
type Context struct {
	Slot uint64 `json:"slot"`
}

type SignatureValue struct {
	Err json.RawMessage `json:"err"`
}

// HTTPToWSURL converts an HTTP(S) RPC URL to its pubsub URL.
func HTTPToWSURL(httpURL string) string {
	wsURL := strings.Replace(httpURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	return wsURL
}

// NewWebSocketClient dials wsURL and starts the reader.
func NewWebSocketClient(ctx context.Context, wsURL string, logger *zap.Logger) (*WebSocketClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)
	client := &WebSocketClient{
		url:           wsURL,
		conn:          conn,
		logger:        logger.With(zap.String("ws_url", wsURL)),
		subscriptions: make(map[uint64]*Subscription),
		nextID:        1,
		ctx:           clientCtx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	client.logger.Debug("websocket connected")

	go client.readMessages()
	go func() {
		<-clientCtx.Done()
		_ = client.Close()
	}()

	return client, nil
}

// SubscribeSignature asks the node to report when sig reaches commitment.
// The returned channel receives exactly one update.
func (c *WebSocketClient) SubscribeSignature(sig, commitment string) (<-chan SignatureUpdate, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	id := c.nextID
	c.nextID++
	sub := &Subscription{
		ID:        id,
		Signature: sig,
		updates:   make(chan SignatureUpdate, 1),
	}
	c.subscriptions[id] = sub
	c.mu.Unlock()

	req := RPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			sig,
			map[string]interface{}{"commitment": commitment},
		},
	}
	if err := c.sendRequest(req); err != nil {
		c.mu.Lock()
		delete(c.subscriptions, id)
		c.mu.Unlock()
		return nil, err
	}
	return sub.updates, nil
}

func (c *WebSocketClient) sendRequest(req RPCRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WebSocketClient) readMessages() {
	defer close(c.done)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			c.failAll(ErrClosed)
			return
		}
		c.handleMessage(message)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var notification NotificationMessage
	if err := json.Unmarshal(data, &notification); err == nil && notification.Method == "signatureNotification" {
		c.handleSignatureNotification(notification)
		return
	}

	var response RPCResponse
	if err := json.Unmarshal(data, &response); err != nil {
		c.logger.Warn("failed to parse websocket message", zap.Error(err))
		return
	}
	c.handleResponse(response)
}

func (c *WebSocketClient) handleResponse(response RPCResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, exists := c.subscriptions[response.ID]
	if !exists {
		return
	}
	if response.Error != nil {
		delete(c.subscriptions, response.ID)
		sub.updates <- SignatureUpdate{Err: response.Error}
		return
	}

	var subID uint64
	if err := json.Unmarshal(response.Result, &subID); err != nil {
		delete(c.subscriptions, response.ID)
		sub.updates <- SignatureUpdate{Err: fmt.Errorf("unexpected subscribe result %s", string(response.Result))}
		return
	}
	sub.SubID = subID
}

// Signature subscriptions are cancelled by the node after the first
// notification, so the entry is dropped here.
func (c *WebSocketClient) handleSignatureNotification(notification NotificationMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, sub := range c.subscriptions {
		if sub.SubID != 0 && sub.SubID == notification.Params.Subscription {
			delete(c.subscriptions, id)
			sub.updates <- SignatureUpdate{
				Slot:  notification.Params.Result.Context.Slot,
				TxErr: notification.Params.Result.Value.Err,
			}
			return
		}
	}
}

func (c *WebSocketClient) failAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, sub := range c.subscriptions {
		delete(c.subscriptions, id)
		sub.updates <- SignatureUpdate{Err: err}
	}
}

// Close closes the WebSocket connection
func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	err := c.conn.Close()
	<-c.done
	return err
}

// WaitForSignature opens a pubsub connection next to rpcURL and blocks until
// sig reaches commitment or ctx ends.
func WaitForSignature(ctx context.Context, rpcURL, sig, commitment string, logger *zap.Logger) (SignatureUpdate, error) {
	client, err := NewWebSocketClient(ctx, HTTPToWSURL(rpcURL), logger)
	if err != nil {
		return SignatureUpdate{}, err
	}
	defer client.Close()

	updates, err := client.SubscribeSignature(sig, commitment)
	if err != nil {
		return SignatureUpdate{}, err
	}

	select {
	case update := <-updates:
		if update.Err != nil && ctx.Err() != nil {
			return SignatureUpdate{}, ctx.Err()
		}
		if update.Err != nil {
			return update, update.Err
		}
		return update, nil
	case <-ctx.Done():
		return SignatureUpdate{}, ctx.Err()
	}
}
