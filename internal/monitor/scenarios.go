package monitor

import (
	"fmt"
	"strings"

	"firstaid-vitals/internal/models"
)

// Scenario 模拟场景
type Scenario string

const (
	ScenarioShock       Scenario = "shock"
	ScenarioRespiratory Scenario = "respiratory"
	ScenarioCardiac     Scenario = "cardiac"
	ScenarioNormal      Scenario = "normal"
)

type scenarioVitals struct {
	heartRate   int
	systolic    int
	diastolic   int
	oxygen      float64
	temperature float64
	respiration int
}

var scenarios = map[Scenario]scenarioVitals{
	ScenarioShock:       {heartRate: 130, systolic: 85, diastolic: 55, oxygen: 92, temperature: 35.8, respiration: 26},
	ScenarioRespiratory: {heartRate: 110, systolic: 125, diastolic: 80, oxygen: 86, temperature: 37.2, respiration: 28},
	ScenarioCardiac:     {heartRate: 45, systolic: 170, diastolic: 105, oxygen: 93, temperature: 36.8, respiration: 18},
	ScenarioNormal:      {heartRate: 75, systolic: 120, diastolic: 80, oxygen: 98, temperature: 36.9, respiration: 16},
}

// ParseScenario 解析场景名称（不区分大小写）
func ParseScenario(s string) (Scenario, error) {
	sc := Scenario(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := scenarios[sc]; !ok {
		return "", fmt.Errorf("unknown simulation scenario: %q", s)
	}
	return sc, nil
}

func (s scenarioVitals) snapshot() models.VitalSigns {
	return models.VitalSigns{
		HeartRate:        models.IntPtr(s.heartRate),
		BloodPressure:    &models.BloodPressure{Systolic: s.systolic, Diastolic: s.diastolic},
		OxygenSaturation: models.Float64Ptr(s.oxygen),
		Temperature:      models.Float64Ptr(s.temperature),
		RespirationRate:  models.IntPtr(s.respiration),
	}
}
