package cdc

import "encoding/json"

// HeartbeatSchema marks a connector liveness message carrying no row change.
const HeartbeatSchema = "io.debezium.connector.common.Heartbeat"

// Row operations as they appear on the change stream. Snapshot reads ("r")
// are delivered by the connector during initial sync and carry no new fact.
const (
	OpCreate = "c"
	OpUpdate = "u"
	OpDelete = "d"
	OpRead   = "r"
)

// Source tables watched by the normalizer.
const (
	TableUsers        = "users"
	TableParticipants = "referral_participants"
)

// ChangeEnvelope is the row-level change-data-capture message: before/after
// images plus operation kind and origin table.
type ChangeEnvelope struct {
	Schema  Schema  `json:"schema"`
	Payload Payload `json:"payload"`
}

// Schema identifies the envelope schema; only the name is inspected.
type Schema struct {
	Name string `json:"name"`
}

// Payload carries the row images. Before is empty for creates, After for
// deletes.
type Payload struct {
	Op     string          `json:"op"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
	Source Source          `json:"source"`
}

// Source describes where the change originated.
type Source struct {
	Table string `json:"table"`
}
