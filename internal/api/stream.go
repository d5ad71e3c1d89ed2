package api

import (
	"github.com/talgya/ssd-village/internal/engine"
	"github.com/talgya/ssd-village/internal/telemetry"
)

// streamMessage is one WebSocket frame: either a catch-up event or a live
// telemetry record.
type streamMessage struct {
	Type   string            `json:"type"` // "event" or "record"
	Event  *engine.Event     `json:"event,omitempty"`
	Record *telemetry.Record `json:"record,omitempty"`
}
