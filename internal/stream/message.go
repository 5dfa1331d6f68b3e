package stream

import "time"

// Topics a client can subscribe to.
const (
	TopicMarketData   = "market_data"
	TopicSignals      = "trading_signals"
	TopicPortfolio    = "portfolio_updates"
	TopicRiskAlerts   = "risk_alerts"
	TopicSystemStatus = "system_status"
)

// AvailableStreams lists every topic in announcement order.
var AvailableStreams = []string{
	TopicMarketData,
	TopicSignals,
	TopicPortfolio,
	TopicRiskAlerts,
	TopicSystemStatus,
}

func knownTopic(t string) bool {
	for _, s := range AvailableStreams {
		if s == t {
			return true
		}
	}
	return false
}

// Message types.
const (
	TypeConnectionConfirmed     = "connection_confirmed"
	TypeSubscriptionConfirmed   = "subscription_confirmed"
	TypeUnsubscriptionConfirmed = "unsubscription_confirmed"
	TypePong                    = "pong"
	TypeError                   = "error"
	TypeMarketData              = "market_data_update"
	TypeSignals                 = "trading_signals_update"
	TypePortfolio               = "portfolio_update"
	TypeRiskAlerts              = "risk_alerts_update"
	TypeSystemStatus            = "system_status"
)

// Message is every server-to-client frame.
type Message struct {
	Type             string      `json:"type"`
	Timestamp        time.Time   `json:"timestamp"`
	ClientID         string      `json:"client_id,omitempty"`
	Streams          []string    `json:"streams,omitempty"`
	AvailableStreams []string    `json:"available_streams,omitempty"`
	Count            *int        `json:"count,omitempty"`
	Data             interface{} `json:"data,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// request is a client-to-server frame.
type request struct {
	Type    string   `json:"type"`
	Streams []string `json:"streams"`
}
