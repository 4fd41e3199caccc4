// Package events publishes registry notifications: best-effort,
// asynchronous, informational only. A notifier failure must never roll back
// core state, so emission happens after commit and errors are only logged.
package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gelotto/lottery-engine/pkg/common/logger"
	"github.com/gelotto/lottery-engine/pkg/retry"
)

const (
	TypeTicketsBought = "tickets_bought"
	TypeGameEnded     = "game_ended"
)

// Notification is the registry-facing payload produced by an engine
// operation, returned to the host alongside the state change.
type Notification struct {
	Type           string `json:"type"`
	GameID         string `json:"game_id"`
	NewTicketCount uint32 `json:"new_ticket_count,omitempty"`
	NewPlayerCount uint32 `json:"new_player_count,omitempty"`
	WinnerCount    uint32 `json:"winner_count,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

func TicketsBought(gameID string, newTicketCount, newPlayerCount uint32) Notification {
	return Notification{
		Type:           TypeTicketsBought,
		GameID:         gameID,
		NewTicketCount: newTicketCount,
		NewPlayerCount: newPlayerCount,
		Timestamp:      time.Now().UTC().Unix(),
	}
}

func GameEnded(gameID string, winnerCount uint32) Notification {
	return Notification{
		Type:        TypeGameEnded,
		GameID:      gameID,
		WinnerCount: winnerCount,
		Timestamp:   time.Now().UTC().Unix(),
	}
}

type Emitter interface {
	// Emit publishes one notification, retrying briefly.
	Emit(n Notification) error
	// EmitAll publishes fire-and-forget: failures are logged, never
	// returned.
	EmitAll(ns []Notification)
	Close()
}

type natsEmitter struct {
	conn    *nats.Conn
	subject string
}

func NewEmitter(conn *nats.Conn, subject string) Emitter {
	return &natsEmitter{conn: conn, subject: subject}
}

func (e *natsEmitter) Emit(n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return retry.Constant(func() error {
		return e.conn.Publish(e.subject, data)
	}, retry.DefaultInterval, retry.DefaultMaxAttempts)
}

func (e *natsEmitter) EmitAll(ns []Notification) {
	for _, n := range ns {
		if err := e.Emit(n); err != nil {
			logger.Warn("registry notification dropped",
				"type", n.Type, "game", n.GameID, "err", err)
		}
	}
}

func (e *natsEmitter) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
}

// NopEmitter discards notifications. Used when no registry is configured
// and in tests.
type NopEmitter struct{}

func (NopEmitter) Emit(Notification) error { return nil }
func (NopEmitter) EmitAll([]Notification)  {}
func (NopEmitter) Close()                  {}
