package adapter

// 适配器只输出生理上可表示的数值，超出范围的字段直接丢弃

// ValidHeartRate 心率 20-300 bpm
func ValidHeartRate(bpm int) bool {
	return bpm >= 20 && bpm <= 300
}

// ValidBloodPressure 收缩压/舒张压均在 (0, 300) mmHg
func ValidBloodPressure(systolic, diastolic int) bool {
	return systolic > 0 && systolic < 300 && diastolic > 0 && diastolic < 300
}

// ValidOxygenSaturation 血氧 (0, 100] %
func ValidOxygenSaturation(pct float64) bool {
	return pct > 0 && pct <= 100
}

// ValidTemperature 体温 25-45 摄氏度
func ValidTemperature(celsius float64) bool {
	return celsius >= 25 && celsius <= 45
}

// ValidRespirationRate 呼吸 1-80 次/分钟
func ValidRespirationRate(rate int) bool {
	return rate >= 1 && rate <= 80
}
