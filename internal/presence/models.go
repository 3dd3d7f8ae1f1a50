package presence

import "time"

// Status is the coarse reachability state shown to other users.
type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
	StatusOnCall  Status = "on_call"
)

// ValidManualStatus reports whether a client may pin st as a manual override.
// on_call is reserved for the call service.
func ValidManualStatus(st Status) bool {
	switch st {
	case StatusOnline, StatusIdle, StatusAway, StatusOffline:
		return true
	default:
		return false
	}
}

// Record is a snapshot of one user's presence.
//
// Invariants:
// - OpenConnections == 0 implies Status == offline unless a manual override
//   pins another status.
// - IsManual means automatic decay and activity pings must not change Status.
type Record struct {
	UserID          string    `json:"user_id"`
	Status          Status    `json:"status"`
	LastActiveAt    time.Time `json:"last_active_at"`
	IsManual        bool      `json:"is_manual"`
	OpenConnections int       `json:"open_connections"`
}

// Update is the wire payload fanned out to subscribers.
type Update struct {
	UserID     string `json:"userId"`
	Status     Status `json:"status"`
	LastActive int64  `json:"lastActive"` // unix millis; 0 for never-seen users
}

func (r Record) ToUpdate() Update {
	u := Update{UserID: r.UserID, Status: r.Status}
	if !r.LastActiveAt.IsZero() {
		u.LastActive = r.LastActiveAt.UnixMilli()
	}
	return u
}
