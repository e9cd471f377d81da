package models

import "strings"

// InjurySeverity 伤情严重程度
type InjurySeverity string

const (
	SeverityLow    InjurySeverity = "low"
	SeverityMedium InjurySeverity = "medium"
	SeverityHigh   InjurySeverity = "high"
)

// ParseInjurySeverity 解析严重程度，无法识别时默认 medium
func ParseInjurySeverity(s string) InjurySeverity {
	switch InjurySeverity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Rank 严重程度排序值，用于规则门控
func (s InjurySeverity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityHigh:
		return 2
	default:
		return 1
	}
}

// DetailSeverity 单项指标异常级别
type DetailSeverity string

const (
	DetailWarning  DetailSeverity = "warning"
	DetailCritical DetailSeverity = "critical"
)

// CriticalDetail 单项异常指标
type CriticalDetail struct {
	Metric         string         `json:"metric"`
	Value          string         `json:"value"`
	NormalRange    string         `json:"normal_range"`
	Severity       DetailSeverity `json:"severity"`
	Recommendation string         `json:"recommendation"`
}

// AnalysisResult 生命体征分析结果（按需计算，不持久化）
type AnalysisResult struct {
	HasCriticalSigns       bool             `json:"has_critical_signs"`
	CriticalDetails        []CriticalDetail `json:"critical_details"`
	InjurySpecificWarnings []string         `json:"injury_specific_warnings"`
	OverallRecommendation  string           `json:"overall_recommendation"`
}

// HasWarnings 是否存在 warning 级别的指标
func (r *AnalysisResult) HasWarnings() bool {
	for _, d := range r.CriticalDetails {
		if d.Severity == DetailWarning {
			return true
		}
	}
	return false
}

// NormalRange 正常范围（展示用）
type NormalRange struct {
	Metric string `json:"metric"`
	Range  string `json:"range"`
}
