package database

import (
	"time"

	"gorm.io/gorm"
)

// QueryLog is one lookup as seen by the API or CLI.
type QueryLog struct {
	gorm.Model
	Portal       string    `json:"portal"`
	NaturalKey   string    `json:"natural_key"`
	Refresh      bool      `json:"refresh"`
	FromCache    bool      `json:"from_cache"`
	Outcome      string    `json:"outcome"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	QueryTime    time.Time `json:"query_time"`
	IPAddress    string    `json:"ip_address"`
}

func (QueryLog) TableName() string {
	return "query_logs"
}
