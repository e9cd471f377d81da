package models

import (
	"time"
)

// VitalAlert 危急告警记录（进入危急状态时生成，对应 vital_alerts 表）
type VitalAlert struct {
	AlertID         string           `json:"alert_id" db:"alert_id"`
	SessionID       string           `json:"session_id" db:"session_id"`
	Platform        Platform         `json:"platform" db:"platform"`
	InjuryType      string           `json:"injury_type,omitempty" db:"injury_type"`
	InjurySeverity  InjurySeverity   `json:"injury_severity" db:"injury_severity"`
	VitalSigns      VitalSigns       `json:"vital_signs" db:"vital_signs"`
	CriticalDetails []CriticalDetail `json:"critical_details" db:"critical_details"`
	Warnings        []string         `json:"warnings" db:"warnings"`
	Recommendation  string           `json:"recommendation" db:"recommendation"`
	TriggeredAt     time.Time        `json:"triggered_at" db:"triggered_at"`
}
