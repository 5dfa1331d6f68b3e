// Package stream is the WebSocket pub/sub hub. Each topic is published by a
// periodic task bound to the context passed to Run.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/observability"
)

// Default publish intervals.
const (
	DefaultMarketDataInterval = 5 * time.Second
	DefaultSignalsInterval    = 30 * time.Second
	DefaultPortfolioInterval  = 10 * time.Second
	DefaultAlertsInterval     = time.Second
	DefaultSendBuffer         = 64
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// AlertSource returns alerts raised after a cursor.
type AlertSource interface {
	Since(cursor uint64) ([]domain.RiskAlert, uint64)
}

// Options configures a Hub. Nil sources disable their topic.
type Options struct {
	MarketData func(ctx context.Context) (map[string]domain.MarketSnapshot, error)
	Portfolio  func() domain.LedgerSummary
	Alerts     AlertSource
	Status     func() interface{}

	MarketDataInterval time.Duration
	SignalsInterval    time.Duration
	PortfolioInterval  time.Duration
	AlertsInterval     time.Duration
	SendBuffer         int

	Logger zerolog.Logger
	Now    func() time.Time
}

// Hub tracks WebSocket clients and fans messages out by topic.
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	signalsMu sync.RWMutex
	signals   []domain.TradingSignal

	log zerolog.Logger
	now func() time.Time
}

// NewHub creates a Hub.
func NewHub(opts Options) *Hub {
	if opts.MarketDataInterval <= 0 {
		opts.MarketDataInterval = DefaultMarketDataInterval
	}
	if opts.SignalsInterval <= 0 {
		opts.SignalsInterval = DefaultSignalsInterval
	}
	if opts.PortfolioInterval <= 0 {
		opts.PortfolioInterval = DefaultPortfolioInterval
	}
	if opts.AlertsInterval <= 0 {
		opts.AlertsInterval = DefaultAlertsInterval
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		log:     opts.Logger.With().Str("component", "stream").Logger(),
		now:     opts.Now,
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishSignals caches the latest signal batch for the trading_signals topic.
func (h *Hub) PublishSignals(signals []domain.TradingSignal) {
	cp := make([]domain.TradingSignal, len(signals))
	copy(cp, signals)
	h.signalsMu.Lock()
	h.signals = cp
	h.signalsMu.Unlock()
}

// LatestSignals returns the cached signal batch.
func (h *Hub) LatestSignals() []domain.TradingSignal {
	h.signalsMu.RLock()
	defer h.signalsMu.RUnlock()
	out := make([]domain.TradingSignal, len(h.signals))
	copy(out, h.signals)
	return out
}

// Run starts the topic publishers and blocks until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	var wg sync.WaitGroup
	start := func(interval time.Duration, publish func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if h.ClientCount() > 0 {
						publish(ctx)
					}
				}
			}
		}()
	}

	if h.opts.MarketData != nil {
		start(h.opts.MarketDataInterval, h.publishMarketData)
	}
	start(h.opts.SignalsInterval, h.publishSignals)
	if h.opts.Portfolio != nil {
		start(h.opts.PortfolioInterval, h.publishPortfolio)
	}
	if h.opts.Alerts != nil {
		var cursor uint64
		_, cursor = h.opts.Alerts.Since(0)
		start(h.opts.AlertsInterval, func(context.Context) {
			var fresh []domain.RiskAlert
			fresh, cursor = h.opts.Alerts.Since(cursor)
			if len(fresh) > 0 {
				n := len(fresh)
				h.Broadcast(TopicRiskAlerts, Message{Type: TypeRiskAlerts, Count: &n, Data: fresh})
			}
		})
	}

	h.log.Info().Msg("stream publishers started")
	<-ctx.Done()
	wg.Wait()

	h.mu.Lock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
	h.mu.Unlock()
	observability.SetWSClients(0)
	h.log.Info().Msg("stream publishers stopped")
}

func (h *Hub) publishMarketData(ctx context.Context) {
	data, err := h.opts.MarketData(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("market data stream")
		return
	}
	if len(data) == 0 {
		return
	}
	n := len(data)
	h.Broadcast(TopicMarketData, Message{Type: TypeMarketData, Count: &n, Data: data})
}

func (h *Hub) publishSignals(context.Context) {
	signals := h.LatestSignals()
	n := len(signals)
	h.Broadcast(TopicSignals, Message{Type: TypeSignals, Count: &n, Data: signals})
}

func (h *Hub) publishPortfolio(context.Context) {
	h.Broadcast(TopicPortfolio, Message{Type: TypePortfolio, Data: h.opts.Portfolio()})
}

func (h *Hub) statusMessage() Message {
	var data interface{}
	if h.opts.Status != nil {
		data = h.opts.Status()
	} else {
		data = map[string]interface{}{"connected_clients": h.ClientCount()}
	}
	return Message{Type: TypeSystemStatus, Data: data}
}

// Broadcast sends msg to every client subscribed to topic. Clients without
// subscriptions receive every topic. A client whose buffer is full is dropped.
func (h *Hub) Broadcast(topic string, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = h.now().UTC()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", msg.Type).Msg("marshal stream message")
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.subscribed(topic) {
			continue
		}
		if c.enqueue(b) {
			observability.RecordWSMessage(msg.Type)
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("client_id", c.id).Msg("dropping slow client")
		observability.RecordWSClientDropped()
		h.unregister(c)
	}
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
// Initial topics come from ?streams=a,b.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	c := newClient(h, conn, uuid.NewString())
	if s := r.URL.Query().Get("streams"); s != "" {
		c.subscribe(strings.Split(s, ","))
	}
	c.send(Message{
		Type:             TypeConnectionConfirmed,
		ClientID:         c.id,
		Streams:          c.topics(),
		AvailableStreams: AvailableStreams,
	})
	h.register(c)

	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	observability.SetWSClients(n)
	h.log.Info().Str("client_id", c.id).Int("clients", n).Msg("client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		observability.SetWSClients(n)
		h.log.Info().Str("client_id", c.id).Int("clients", n).Msg("client disconnected")
	}
}
