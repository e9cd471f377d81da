package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"firstaid-vitals/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// DefaultListLimit 会话告警默认返回条数
const DefaultListLimit = 100

const createVitalAlertsTable = `
	CREATE TABLE IF NOT EXISTS vital_alerts (
		alert_id         UUID PRIMARY KEY,
		session_id       TEXT NOT NULL,
		platform         TEXT NOT NULL,
		injury_type      TEXT NOT NULL DEFAULT '',
		injury_severity  TEXT NOT NULL,
		vital_signs      JSONB NOT NULL,
		critical_details JSONB NOT NULL,
		warnings         TEXT[] NOT NULL DEFAULT '{}',
		recommendation   TEXT NOT NULL,
		triggered_at     TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vital_alerts_session
		ON vital_alerts (session_id, triggered_at DESC);
`

// VitalAlertsRepository 危急告警仓库
type VitalAlertsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVitalAlertsRepository 创建危急告警仓库
func NewVitalAlertsRepository(db *sql.DB, logger *zap.Logger) *VitalAlertsRepository {
	return &VitalAlertsRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *VitalAlertsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createVitalAlertsTable); err != nil {
		return fmt.Errorf("failed to create vital_alerts table: %w", err)
	}
	return nil
}

// CreateAlert 写入一条危急告警
func (r *VitalAlertsRepository) CreateAlert(ctx context.Context, alert *models.VitalAlert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if alert.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	vitalsJSON, err := json.Marshal(alert.VitalSigns)
	if err != nil {
		return fmt.Errorf("failed to marshal vital signs: %w", err)
	}
	details := alert.CriticalDetails
	if details == nil {
		details = []models.CriticalDetail{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal critical details: %w", err)
	}
	warnings := alert.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	query := `
		INSERT INTO vital_alerts (
			alert_id,
			session_id,
			platform,
			injury_type,
			injury_severity,
			vital_signs,
			critical_details,
			warnings,
			recommendation,
			triggered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (alert_id) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.SessionID,
		string(alert.Platform),
		alert.InjuryType,
		string(alert.InjurySeverity),
		vitalsJSON,
		detailsJSON,
		pq.Array(warnings),
		alert.Recommendation,
		alert.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vital alert: %w", err)
	}

	r.logger.Debug("Vital alert stored",
		zap.String("alert_id", alert.AlertID),
		zap.String("session_id", alert.SessionID),
	)
	return nil
}

// ListAlertsBySession 按会话查询告警（按触发时间倒序）
func (r *VitalAlertsRepository) ListAlertsBySession(ctx context.Context, sessionID string, limit int) ([]models.VitalAlert, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT
			alert_id,
			session_id,
			platform,
			injury_type,
			injury_severity,
			vital_signs,
			critical_details,
			warnings,
			recommendation,
			triggered_at
		FROM vital_alerts
		WHERE session_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vital alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.VitalAlert, 0)
	for rows.Next() {
		var alert models.VitalAlert
		var platform, severity string
		var vitalsJSON, detailsJSON []byte
		var warnings pq.StringArray

		if err := rows.Scan(
			&alert.AlertID,
			&alert.SessionID,
			&platform,
			&alert.InjuryType,
			&severity,
			&vitalsJSON,
			&detailsJSON,
			&warnings,
			&alert.Recommendation,
			&alert.TriggeredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vital alert: %w", err)
		}

		alert.Platform = models.Platform(platform)
		alert.InjurySeverity = models.InjurySeverity(severity)
		alert.Warnings = []string(warnings)
		if alert.Warnings == nil {
			alert.Warnings = []string{}
		}

		// 单条 JSONB 损坏时记录日志并跳过
		if err := json.Unmarshal(vitalsJSON, &alert.VitalSigns); err != nil {
			r.logger.Warn("Failed to decode vital signs, skipping alert",
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
			continue
		}
		if err := json.Unmarshal(detailsJSON, &alert.CriticalDetails); err != nil {
			r.logger.Warn("Failed to decode critical details, skipping alert",
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
			continue
		}

		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vital alerts: %w", err)
	}

	return alerts, nil
}
