package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"token-deploy/internal/observability"
)

// ErrClientClosed is returned by operations on a closed WSClientImpl.
var ErrClientClosed = errors.New("client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription ID.
	SubscribeTimeout time.Duration
	// Logger receives connection-level events. Nil disables logging.
	Logger *zap.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to head channel
	subs   map[string]chan Head
	subsMu sync.RWMutex

	// pending maps request ID to the subscribe call waiting for its ID
	pending   map[uint64]*pendingSub
	pendingMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// pendingSub is an in-flight eth_subscribe. The head channel travels with
// the request so the read loop can register it before reading the next
// frame, which may already be a notification for the new ID.
type pendingSub struct {
	ch chan Head
	// replaces is the pre-reconnect subscription ID, empty for a fresh one.
	replaces string
	// result has room for one value; handleResponse is the only sender.
	result chan subscribeResult
}

type subscribeResult struct {
	id string
	// stale is set when the replaced subscriber went away before the
	// response arrived; the new ID was not registered.
	stale bool
	err   error
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		subs:     make(map[string]chan Head),
		pending:  make(map[uint64]*pendingSub),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeNewHeads subscribes to new chain heads.
func (c *WSClientImpl) SubscribeNewHeads(ctx context.Context) (*HeadSubscription, error) {
	ch := make(chan Head, 16)
	if _, _, err := c.subscribe(ctx, ch, ""); err != nil {
		return nil, err
	}

	var once sync.Once
	return &HeadSubscription{
		C: ch,
		unsubscribe: func() {
			once.Do(func() { c.unsubscribe(ch) })
		},
	}, nil
}

// subscribe sends eth_subscribe for ch and waits for the subscription ID.
// The response handler registers ch under the new ID, dropping replaces
// when set. stale reports that replaces was unsubscribed in the meantime,
// leaving the new ID live on the node but unregistered here.
func (c *WSClientImpl) subscribe(ctx context.Context, ch chan Head, replaces string) (string, bool, error) {
	if c.closed.Load() {
		return "", false, ErrClientClosed
	}

	reqID := c.requestID.Add(1)
	p := &pendingSub{
		ch:       ch,
		replaces: replaces,
		result:   make(chan subscribeResult, 1),
	}
	c.pendingMu.Lock()
	c.pending[reqID] = p
	c.pendingMu.Unlock()

	// forget withdraws the request. It reports false when the response
	// handler already took it, in which case a result is on its way.
	forget := func() bool {
		c.pendingMu.Lock()
		defer c.pendingMu.Unlock()
		if _, ok := c.pending[reqID]; !ok {
			return false
		}
		delete(c.pending, reqID)
		return true
	}

	if err := c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "eth_subscribe",
		Params:  []interface{}{"newHeads"},
	}); err != nil {
		forget()
		return "", false, err
	}

	var giveUp error
	select {
	case res, ok := <-p.result:
		if !ok {
			return "", false, ErrClientClosed
		}
		return res.id, res.stale, res.err
	case <-time.After(c.config.SubscribeTimeout):
		giveUp = fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return "", false, ErrClientClosed
	case <-ctx.Done():
		giveUp = ctx.Err()
	}

	if forget() {
		return "", false, giveUp
	}
	// The response landed while we were giving up and ch may already be
	// registered. Take the result so the caller can own it.
	res, ok := <-p.result
	if !ok {
		return "", false, ErrClientClosed
	}
	return res.id, res.stale, res.err
}

// unsubscribe drops the channel and asks the node to stop sending.
func (c *WSClientImpl) unsubscribe(ch chan Head) {
	var subID string
	c.subsMu.Lock()
	for id, sub := range c.subs {
		if sub == ch {
			subID = id
			delete(c.subs, id)
			close(ch)
			break
		}
	}
	c.subsMu.Unlock()

	if subID == "" {
		return
	}
	c.sendUnsubscribe(subID)
}

// sendUnsubscribe asks the node to drop subID. Best effort: the node drops
// the subscription with the connection anyway.
func (c *WSClientImpl) sendUnsubscribe(subID string) {
	if c.closed.Load() {
		return
	}
	if err := c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "eth_unsubscribe",
		Params:  []interface{}{subID},
	}); err != nil {
		c.logger.Debug("unsubscribe failed", zap.String("subscription", subID), zap.Error(err))
	}
}

func (c *WSClientImpl) write(req wsRequest) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}

// Close closes the WebSocket connection and all subscription channels.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingMu.Lock()
	for id, p := range c.pending {
		close(p.result)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				c.logger.Warn("websocket read failed, reconnecting",
					zap.Duration("delay", reconnectDelay), zap.Error(err))
				c.wg.Add(1)
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		reconnectDelay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// sleep waits for d; returns false if the client closed meanwhile.
func (c *WSClientImpl) sleep(d time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(d):
		return true
	}
}

// reconnect redials and moves existing subscribers onto fresh subscriptions.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.wg.Done()
	defer c.reconnecting.Store(false)

	if !c.sleep(delay) {
		return
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Warn("websocket reconnect failed", zap.Error(err))
		return
	}

	c.resubscribeAll(ctx)
}

// resubscribeAll re-issues eth_subscribe for every live subscriber.
// Subscription IDs do not survive a reconnect.
func (c *WSClientImpl) resubscribeAll(ctx context.Context) {
	c.subsMu.RLock()
	old := make(map[string]chan Head, len(c.subs))
	for id, ch := range c.subs {
		old[id] = ch
	}
	c.subsMu.RUnlock()

	for oldID, ch := range old {
		newID, stale, err := c.subscribe(ctx, ch, oldID)
		if err != nil {
			c.logger.Warn("resubscribe failed", zap.String("subscription", oldID), zap.Error(err))
			continue
		}
		if stale {
			// Unsubscribed while the request was in flight.
			c.sendUnsubscribe(newID)
		}
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("ignoring malformed message", zap.Error(err))
		return
	}

	switch {
	case msg.Method == "eth_subscription" && msg.Params != nil:
		c.handleHead(msg.Params)
	case msg.ID != nil:
		c.handleResponse(*msg.ID, &msg)
	}
}

// handleResponse resolves a pending subscribe request. The head channel is
// registered before returning so a notification right behind the response
// finds its subscriber.
func (c *WSClientImpl) handleResponse(id uint64, msg *wsMessage) {
	c.pendingMu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	if !ok {
		return
	}

	var res subscribeResult
	if msg.Error != nil {
		res.err = msg.Error
	} else if err := json.Unmarshal(msg.Result, &res.id); err != nil {
		res.err = fmt.Errorf("decode subscription id: %w", err)
	} else {
		c.register(p, &res)
	}

	p.result <- res
}

// register files p.ch under res.id, swapping out p.replaces.
func (c *WSClientImpl) register(p *pendingSub, res *subscribeResult) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	switch {
	case c.closed.Load():
		res.err = ErrClientClosed
	case p.replaces != "" && c.subs[p.replaces] != p.ch:
		res.stale = true
	default:
		if p.replaces != "" {
			delete(c.subs, p.replaces)
		}
		c.subs[res.id] = p.ch
	}
}

// handleHead dispatches a head notification to its subscriber.
func (c *WSClientImpl) handleHead(params *wsNotificationParams) {
	head := Head{
		Number:    uint64(params.Result.Number),
		Hash:      params.Result.Hash,
		Timestamp: uint64(params.Result.Timestamp),
	}
	observability.RecordHead()

	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	ch, ok := c.subs[params.Subscription]
	if !ok {
		return
	}

	select {
	case ch <- head:
	default:
		c.logger.Debug("subscriber lagging, head dropped", zap.Uint64("number", head.Number))
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A dead connection is detected and redialed by readLoop
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// wsMessage covers both responses (ID set) and notifications (Method set).
type wsMessage struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      *uint64               `json:"id"`
	Result  json.RawMessage       `json:"result"`
	Error   *RPCError             `json:"error"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription string `json:"subscription"`
	Result       wsHead `json:"result"`
}

type wsHead struct {
	Number    hexutil.Uint64 `json:"number"`
	Hash      string         `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}
