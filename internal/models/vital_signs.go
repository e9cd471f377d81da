package models

import (
	"time"
)

// BloodPressure 血压（mmHg）
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// VitalSigns 生命体征快照
// 所有字段独立可选：设备未上报的字段保持 nil，不得视为 0 或正常
type VitalSigns struct {
	HeartRate        *int           `json:"heart_rate,omitempty"`        // bpm
	BloodPressure    *BloodPressure `json:"blood_pressure,omitempty"`    // mmHg
	OxygenSaturation *float64       `json:"oxygen_saturation,omitempty"` // %
	Temperature      *float64       `json:"temperature,omitempty"`       // 摄氏度
	RespirationRate  *int           `json:"respiration_rate,omitempty"`  // 次/分钟
	Timestamp        time.Time      `json:"timestamp"`
}

// IsEmpty 是否没有任何指标
func (v *VitalSigns) IsEmpty() bool {
	return v.HeartRate == nil &&
		v.BloodPressure == nil &&
		v.OxygenSaturation == nil &&
		v.Temperature == nil &&
		v.RespirationRate == nil
}

// Clone 深拷贝快照，调用方持有的副本与内部状态互不影响
func (v VitalSigns) Clone() VitalSigns {
	out := VitalSigns{Timestamp: v.Timestamp}
	if v.HeartRate != nil {
		hr := *v.HeartRate
		out.HeartRate = &hr
	}
	if v.BloodPressure != nil {
		bp := *v.BloodPressure
		out.BloodPressure = &bp
	}
	if v.OxygenSaturation != nil {
		spo2 := *v.OxygenSaturation
		out.OxygenSaturation = &spo2
	}
	if v.Temperature != nil {
		temp := *v.Temperature
		out.Temperature = &temp
	}
	if v.RespirationRate != nil {
		rr := *v.RespirationRate
		out.RespirationRate = &rr
	}
	return out
}

// Merge 将 update 中存在的字段合并到当前快照，时间戳取 update 的
func (v *VitalSigns) Merge(update VitalSigns) {
	u := update.Clone()
	if u.HeartRate != nil {
		v.HeartRate = u.HeartRate
	}
	if u.BloodPressure != nil {
		v.BloodPressure = u.BloodPressure
	}
	if u.OxygenSaturation != nil {
		v.OxygenSaturation = u.OxygenSaturation
	}
	if u.Temperature != nil {
		v.Temperature = u.Temperature
	}
	if u.RespirationRate != nil {
		v.RespirationRate = u.RespirationRate
	}
	if !u.Timestamp.IsZero() {
		v.Timestamp = u.Timestamp
	}
}

// DeviceInfo 已连接设备信息
type DeviceInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`                    // 平台/类别标签
	BatteryLevel *int   `json:"battery_level,omitempty"` // %
}

// IntPtr 返回 int 指针
func IntPtr(v int) *int {
	return &v
}

// Float64Ptr 返回 float64 指针
func Float64Ptr(v float64) *float64 {
	return &v
}

// SessionVitals 会话最新快照（缓存用，不含分析结果）
type SessionVitals struct {
	SessionID  string      `json:"session_id"`
	Platform   Platform    `json:"platform,omitempty"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
	VitalSigns VitalSigns  `json:"vital_signs"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
