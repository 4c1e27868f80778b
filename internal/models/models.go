package models

import "time"

// User is one entry in the users collection, keyed by username.
// The password hash never leaves the server.
type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Deployment status values. Only Active is produced today; Disabled and
// Failed are reserved for future lifecycle work.
const (
	StatusActive   = "Active"
	StatusDisabled = "Disabled"
	StatusFailed   = "Failed"
)

// Deployment describes one published site. Records are append-only: they are
// created after a fully successful provisioning transaction and removed on
// user-initiated deletion, never mutated in place.
type Deployment struct {
	BucketKey  string    `json:"bucket_key"` // unique, backend-legal bucket name
	OwnerID    string    `json:"owner_id"`
	LaunchTime time.Time `json:"launch_time"` // UTC, set once at creation
	Status     string    `json:"status"`
	URL        string    `json:"url"` // derived from bucket + has_index, not independently mutable
	HasIndex   bool      `json:"has_index"`
}
