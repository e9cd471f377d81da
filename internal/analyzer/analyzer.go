// Package analyzer 生命体征规则引擎
// 纯函数实现：相同输入得到相同结果，无 I/O
package analyzer

import (
	"fmt"
	"strconv"

	"firstaid-vitals/internal/models"
)

// 指标名称（展示用，同时也是 CriticalDetail.Metric 的取值）
const (
	MetricHeartRate        = "Heart Rate"
	MetricBloodPressure    = "Blood Pressure"
	MetricOxygenSaturation = "Oxygen Saturation"
	MetricTemperature      = "Temperature"
	MetricRespirationRate  = "Respiration Rate"
)

// 总体建议
const (
	RecommendationEmergency = "EMERGENCY: Critical vital signs detected alongside injury-specific concerns. Call emergency services immediately and follow the first-aid guidance for this injury."
	RecommendationCritical  = "MEDICAL ALERT: Critical vital signs detected. Seek immediate medical attention."
	RecommendationCaution   = "CAUTION: Some vital signs are outside the normal range. Monitor closely and seek medical advice if they worsen."
	RecommendationNormal    = "Vital signs are within normal ranges. Continue monitoring."
)

// abnormality 单项指标异常方向，用于与伤情关键词交叉匹配
type abnormality int

const (
	heartRateHigh abnormality = iota
	heartRateLow
	bloodPressureHigh
	bloodPressureLow
	oxygenLow
	temperatureHigh
	temperatureLow
	respirationHigh
	respirationLow
)

// finding 单项评估结果
type finding struct {
	detail models.CriticalDetail
	kind   abnormality
}

// Analyze 分析生命体征快照
// injuryType 为空时不做伤情交叉匹配；缺失的指标直接跳过
func Analyze(vs models.VitalSigns, injuryType string, severity models.InjurySeverity) models.AnalysisResult {
	result := models.AnalysisResult{
		CriticalDetails:        []models.CriticalDetail{},
		InjurySpecificWarnings: []string{},
	}

	// 评估顺序固定：心率 → 血压 → 血氧 → 体温 → 呼吸
	evaluators := []func(models.VitalSigns) *finding{
		evaluateHeartRate,
		evaluateBloodPressure,
		evaluateOxygenSaturation,
		evaluateTemperature,
		evaluateRespirationRate,
	}

	for _, evaluate := range evaluators {
		f := evaluate(vs)
		if f == nil {
			continue
		}
		result.CriticalDetails = append(result.CriticalDetails, f.detail)
		if f.detail.Severity == models.DetailCritical {
			result.HasCriticalSigns = true
		}
		if injuryType != "" {
			result.InjurySpecificWarnings = append(result.InjurySpecificWarnings,
				matchInjuryRules(f.kind, injuryType, severity)...)
		}
	}

	result.OverallRecommendation = overallRecommendation(&result)
	return result
}

func overallRecommendation(r *models.AnalysisResult) string {
	switch {
	case r.HasCriticalSigns && len(r.InjurySpecificWarnings) > 0:
		return RecommendationEmergency
	case r.HasCriticalSigns:
		return RecommendationCritical
	case r.HasWarnings():
		return RecommendationCaution
	default:
		return RecommendationNormal
	}
}

func evaluateHeartRate(vs models.VitalSigns) *finding {
	if vs.HeartRate == nil {
		return nil
	}
	hr := *vs.HeartRate
	detail := models.CriticalDetail{
		Metric:      MetricHeartRate,
		Value:       fmt.Sprintf("%d bpm", hr),
		NormalRange: rangeHeartRate,
	}

	switch {
	case hr > 120:
		detail.Severity = models.DetailCritical
		detail.Recommendation = "Heart rate is dangerously high (tachycardia). Keep the person calm and at rest, and seek medical attention."
		return &finding{detail: detail, kind: heartRateHigh}
	case hr < 50:
		detail.Severity = models.DetailCritical
		detail.Recommendation = "Heart rate is dangerously low (bradycardia). Seek medical attention immediately."
		return &finding{detail: detail, kind: heartRateLow}
	case hr > 100:
		detail.Severity = models.DetailWarning
		detail.Recommendation = "Heart rate is elevated. Keep the person at rest and continue monitoring."
		return &finding{detail: detail, kind: heartRateHigh}
	}
	return nil
}

func evaluateBloodPressure(vs models.VitalSigns) *finding {
	if vs.BloodPressure == nil {
		return nil
	}
	bp := *vs.BloodPressure
	detail := models.CriticalDetail{
		Metric:      MetricBloodPressure,
		Value:       fmt.Sprintf("%d/%d mmHg", bp.Systolic, bp.Diastolic),
		NormalRange: rangeBloodPressure,
		Severity:    models.DetailCritical,
	}

	// 高压判断优先于低压
	switch {
	case bp.Systolic > 160 || bp.Diastolic > 100:
		detail.Recommendation = "Blood pressure is critically high. Keep the person seated and calm, and seek medical attention."
		return &finding{detail: detail, kind: bloodPressureHigh}
	case bp.Systolic < 90 || bp.Diastolic < 60:
		detail.Recommendation = "Blood pressure is critically low, a possible sign of shock. Lay the person down and seek emergency care."
		return &finding{detail: detail, kind: bloodPressureLow}
	}
	return nil
}

func evaluateOxygenSaturation(vs models.VitalSigns) *finding {
	if vs.OxygenSaturation == nil {
		return nil
	}
	spo2 := *vs.OxygenSaturation
	detail := models.CriticalDetail{
		Metric:      MetricOxygenSaturation,
		Value:       strconv.FormatFloat(spo2, 'f', -1, 64) + "%",
		NormalRange: rangeOxygenSaturation,
	}

	switch {
	case spo2 < 90:
		detail.Severity = models.DetailCritical
		detail.Recommendation = "Oxygen saturation is critically low. Make sure the airway is clear and seek emergency care."
	case spo2 < 95:
		detail.Severity = models.DetailWarning
		detail.Recommendation = "Oxygen saturation is below normal. Monitor breathing closely."
	default:
		return nil
	}
	return &finding{detail: detail, kind: oxygenLow}
}

func evaluateTemperature(vs models.VitalSigns) *finding {
	if vs.Temperature == nil {
		return nil
	}
	temp := *vs.Temperature
	detail := models.CriticalDetail{
		Metric:      MetricTemperature,
		Value:       fmt.Sprintf("%.1f°C", temp),
		NormalRange: rangeTemperature,
		Severity:    models.DetailCritical,
	}

	switch {
	case temp > 39.0:
		detail.Recommendation = "Body temperature is very high. Cool the person down and seek medical attention."
		return &finding{detail: detail, kind: temperatureHigh}
	case temp < 35.5:
		detail.Recommendation = "Body temperature is low, a possible sign of hypothermia or shock. Keep the person warm."
		return &finding{detail: detail, kind: temperatureLow}
	}
	return nil
}

func evaluateRespirationRate(vs models.VitalSigns) *finding {
	if vs.RespirationRate == nil {
		return nil
	}
	rr := *vs.RespirationRate
	detail := models.CriticalDetail{
		Metric:      MetricRespirationRate,
		Value:       fmt.Sprintf("%d breaths/min", rr),
		NormalRange: rangeRespirationRate,
		Severity:    models.DetailCritical,
	}

	switch {
	case rr > 24:
		detail.Recommendation = "Breathing is abnormally fast. Keep the person calm and seek medical attention."
		return &finding{detail: detail, kind: respirationHigh}
	case rr < 10:
		detail.Recommendation = "Breathing is abnormally slow. Watch the airway and be ready to call emergency services."
		return &finding{detail: detail, kind: respirationLow}
	}
	return nil
}
