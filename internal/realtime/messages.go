package realtime

import "time"

// Client -> server message types.
const (
	MsgSubscribeMetrics   = "subscribe_metrics"
	MsgUnsubscribeMetrics = "unsubscribe_metrics"
	MsgRequestKPIs        = "request_kpis"
	MsgRequestGeographic  = "request_geographic"
	MsgRequestMetric      = "request_metric"
)

// Server -> client message types.
const (
	MsgConnectionConfirmed     = "connection_confirmed"
	MsgSubscriptionConfirmed   = "subscription_confirmed"
	MsgUnsubscriptionConfirmed = "unsubscription_confirmed"
	MsgKPIsUpdate              = "kpis_update"
	MsgGeographicUpdate        = "geographic_update"
	MsgMetricUpdate            = "metric_update"
	MsgAnalyticsAlert          = "analytics_alert"
	MsgAnalyticsError          = "analytics_error"
)

// ClientMessage is the envelope for everything a client sends after the
// handshake.
type ClientMessage struct {
	Type      string   `json:"type"`
	Metrics   []string `json:"metrics,omitempty"`
	Metric    string   `json:"metric,omitempty"`
	TimeRange string   `json:"time_range,omitempty"`
}

// ServerMessage is the envelope for everything pushed to a client.
type ServerMessage struct {
	Type      string      `json:"type"`
	Metric    string      `json:"metric,omitempty"`
	Metrics   []string    `json:"metrics,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	AlertType string      `json:"alert_type,omitempty"`
	Title     string      `json:"title,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
