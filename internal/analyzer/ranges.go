package analyzer

import "firstaid-vitals/internal/models"

// 正常范围展示字符串
const (
	rangeHeartRate        = "60-100 bpm"
	rangeBloodPressure    = "90-140/60-90 mmHg"
	rangeOxygenSaturation = "95-100%"
	rangeTemperature      = "36.5-37.5°C"
	rangeRespirationRate  = "12-20 breaths/min"
)

// GetNormalRanges 返回正常范围参考表（供展示，分析逻辑本身使用硬编码阈值）
func GetNormalRanges() []models.NormalRange {
	return []models.NormalRange{
		{Metric: MetricHeartRate, Range: rangeHeartRate},
		{Metric: MetricBloodPressure, Range: rangeBloodPressure},
		{Metric: MetricOxygenSaturation, Range: rangeOxygenSaturation},
		{Metric: MetricTemperature, Range: rangeTemperature},
		{Metric: MetricRespirationRate, Range: rangeRespirationRate},
	}
}
