package realtime

import (
	"encoding/json"
	"time"
)

type Op string

const (
	// Client -> server.
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
	OpPing        Op = "ping"

	// Server -> client.
	OpPong  Op = "pong"
	OpEvent Op = "event"
	OpError Op = "error"
	OpBye   Op = "bye"
)

type Request struct {
	Op      Op              `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

type Response struct {
	Op      Op  `json:"op"`
	Payload any `json:"payload"`
}

type subscribePayload struct {
	CommunityID string `json:"community_id"`
}

type pongPayload struct {
	CreatedOn time.Time `json:"created_on"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type byePayload struct {
	Message string `json:"message"`
}
