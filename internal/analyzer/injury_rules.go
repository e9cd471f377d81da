package analyzer

import (
	"strings"

	"firstaid-vitals/internal/models"
)

// 伤情关键词组（小写子串匹配）
var (
	keywordsBleeding = []string{"cut", "lac", "wound", "bleed"}
	keywordsBurn     = []string{"burn"}
	keywordsFracture = []string{"fract"}
	keywordsHead     = []string{"head", "concuss", "brain"}
	keywordsChest    = []string{"chest", "lung", "rib"}
)

// injuryRule (异常方向, 关键词组) → 警示文本
type injuryRule struct {
	kind        abnormality
	keywords    []string
	minSeverity models.InjurySeverity
	warning     string
}

// injuryRules 同一异常方向下按表中顺序输出
var injuryRules = []injuryRule{
	{heartRateHigh, keywordsBleeding, models.SeverityLow,
		"Elevated heart rate with an open wound may indicate significant blood loss and a risk of hypovolemic shock. Apply firm pressure to the wound and keep the person lying down."},
	{heartRateHigh, keywordsBurn, models.SeverityLow,
		"Elevated heart rate with a burn may indicate fluid loss or severe pain. Keep cooling the burn and watch for signs of shock."},
	{heartRateHigh, keywordsFracture, models.SeverityMedium,
		"Elevated heart rate with a fracture may indicate internal bleeding or severe pain. Immobilize the injury and watch for signs of shock."},
	{heartRateHigh, keywordsChest, models.SeverityLow,
		"Elevated heart rate with a chest injury may indicate impaired breathing or internal injury. Keep the person still and seek urgent care."},
	{heartRateLow, keywordsHead, models.SeverityLow,
		"Low heart rate after a head injury may indicate rising intracranial pressure. Seek emergency care immediately."},

	{bloodPressureLow, keywordsBleeding, models.SeverityLow,
		"Low blood pressure with bleeding suggests hemorrhagic shock. Control the bleeding and call emergency services now."},
	{bloodPressureLow, keywordsBurn, models.SeverityMedium,
		"Low blood pressure with a significant burn suggests burn shock from fluid loss. Call emergency services."},
	{bloodPressureLow, keywordsFracture, models.SeverityLow,
		"Low blood pressure with a fracture may indicate internal bleeding, especially with pelvic or thigh fractures."},
	{bloodPressureHigh, keywordsHead, models.SeverityLow,
		"High blood pressure after a head injury may indicate bleeding inside the skull. Keep the head slightly raised and seek emergency care."},

	{oxygenLow, keywordsChest, models.SeverityLow,
		"Low oxygen saturation with a chest injury may indicate a collapsed lung or rib damage affecting breathing."},
	{oxygenLow, keywordsHead, models.SeverityLow,
		"Low oxygen saturation after a head injury can worsen brain damage. Keep the airway clear and monitor breathing."},
	{oxygenLow, keywordsBurn, models.SeverityLow,
		"Low oxygen saturation with a burn may indicate smoke inhalation injury. Move the person to fresh air and seek emergency care."},

	{temperatureHigh, keywordsBleeding, models.SeverityLow,
		"Fever with a wound may indicate infection. Seek medical evaluation."},
	{temperatureLow, keywordsBurn, models.SeverityLow,
		"Low body temperature with a burn may indicate hypothermia from over-cooling or a large burn area. Keep the person warm."},

	{respirationLow, keywordsHead, models.SeverityLow,
		"Slow breathing after a head injury may indicate brainstem involvement. Call emergency services and be ready to assist breathing."},
	{respirationHigh, keywordsChest, models.SeverityLow,
		"Rapid breathing with a chest injury may indicate respiratory compromise. Help the person sit upright and seek urgent care."},
	{respirationHigh, keywordsBleeding, models.SeverityHigh,
		"Rapid breathing with severe bleeding may indicate progressing shock. Call emergency services."},
}

func matchInjuryRules(kind abnormality, injuryType string, severity models.InjurySeverity) []string {
	injury := strings.ToLower(injuryType)
	var warnings []string
	for _, rule := range injuryRules {
		if rule.kind != kind || severity.Rank() < rule.minSeverity.Rank() {
			continue
		}
		if containsAny(injury, rule.keywords) {
			warnings = append(warnings, rule.warning)
		}
	}
	return warnings
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
