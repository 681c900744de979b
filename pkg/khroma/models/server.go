package models

import "time"

// Heartbeat is the server clock reading returned by the heartbeat endpoint.
type Heartbeat struct {
	NanosecondHeartbeat int64 `json:"nanosecond heartbeat"`
}

// Time converts the reading to a time.Time.
func (h Heartbeat) Time() time.Time {
	return time.Unix(0, h.NanosecondHeartbeat)
}

// Identity describes the caller as seen by the server's auth layer.
type Identity struct {
	UserID    string   `json:"user_id"`
	Tenant    string   `json:"tenant"`
	Databases []string `json:"databases"`
}

// PreFlightChecks reports server limits clients should respect.
type PreFlightChecks struct {
	MaxBatchSize           int  `json:"max_batch_size"`
	SupportsBase64Encoding bool `json:"supports_base64_encoding"`
}

// CreateTenant is the body of a tenant create request.
type CreateTenant struct {
	Name string `json:"name"`
}

// Tenant is the server's view of a tenant.
type Tenant struct {
	Name string `json:"name"`
}
