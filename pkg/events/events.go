package events

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventStateChanged      EventType = "state_changed"
	EventNotification      EventType = "notification"
	EventTransferSucceeded EventType = "transfer_succeeded"
	EventSessionChanged    EventType = "session_changed"
)

// Event is one broadcast message. Data is a transfer.Status,
// transfer.Notification, models.TransferRecord or SessionInfo depending on
// Type.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// SessionInfo describes the connected wallet. Address is empty when
// disconnected.
type SessionInfo struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
	ChainID int64  `json:"chain_id"`
	RPCURL  string `json:"rpc_url,omitempty"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
