package domain

import "time"

// AccessAction enumerates audited operations on patient data.
type AccessAction string

const (
	AccessGrant  AccessAction = "grant_access"
	AccessRevoke AccessAction = "revoke_access"
	AccessLog    AccessAction = "log_access"
	AccessView   AccessAction = "view"
)

// AccessLogEntry is an append-only audit document in accessLogs/{uuid}.
// Entries are never mutated or deleted.
type AccessLogEntry struct {
	ID          string       `bson:"_id" json:"id"`
	Accessor    string       `bson:"accessor" json:"accessor"`
	Patient     string       `bson:"patient" json:"patient"`
	Action      AccessAction `bson:"action" json:"action"`
	Institution string       `bson:"institution,omitempty" json:"institution,omitempty"`
	Timestamp   time.Time    `bson:"timestamp" json:"timestamp"`
}
