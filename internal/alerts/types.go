package alerts

import (
	"time"
)

// Severity defines alert severity
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status defines alert status
type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Alert is a value that landed above its bucket boundary.
type Alert struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Day       int       `json:"day"`
	Hour      int       `json:"hour"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Threshold float64   `json:"threshold"`
	// Boundary is nil when the threshold leaves the bucket unbounded.
	Boundary  *float64  `json:"boundary"`
	Score     float64   `json:"score"`
	FiredAt   time.Time `json:"fired_at"`

	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
}

// Filter selects alerts from the log. Zero fields match everything.
type Filter struct {
	Status   Status
	Severity Severity
	Limit    int
}

// Summary counts alerts in the log.
type Summary struct {
	TotalAlerts    int            `json:"total_alerts"`
	OpenAlerts     int            `json:"open_alerts"`
	AckedAlerts    int            `json:"acknowledged_alerts"`
	ResolvedAlerts int            `json:"resolved_alerts"`
	BySeverity     map[string]int `json:"by_severity"`
	RecentFired    int            `json:"recent_fired"`
}
