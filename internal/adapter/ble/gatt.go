package ble

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// GATT 16 位 UUID（Bluetooth SIG 分配号）
const (
	ServiceHeartRate       uint16 = 0x180D
	ServiceHealthThermo    uint16 = 0x1809
	ServiceBloodPressure   uint16 = 0x1810
	ServicePulseOximeter   uint16 = 0x1822
	ServiceBattery         uint16 = 0x180F
	ServiceDeviceInfo      uint16 = 0x180A
	CharHeartRateMeasure   uint16 = 0x2A37
	CharTemperatureMeasure uint16 = 0x2A1C
	CharBloodPressure      uint16 = 0x2A35
	CharPLXContinuous      uint16 = 0x2A5F
	CharBatteryLevel       uint16 = 0x2A19
	CharManufacturerName   uint16 = 0x2A29
	CharModelNumber        uint16 = 0x2A24
)

// HealthServices 扫描时匹配的健康类服务
var HealthServices = []uint16{
	ServiceHeartRate,
	ServiceHealthThermo,
	ServicePulseOximeter,
	ServiceBloodPressure,
}

var (
	errShortPayload = errors.New("payload too short")
	errSpecialValue = errors.New("measurement not available")
)

// kPaToMmHg 压力单位换算
const kPaToMmHg = 7.50062

// DecodeHeartRate 解析 Heart Rate Measurement
// flags bit0 = 0: uint8 心率位于 offset 1；= 1: uint16 小端
func DecodeHeartRate(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, errShortPayload
	}
	if data[0]&0x01 == 0 {
		return int(data[1]), nil
	}
	if len(data) < 3 {
		return 0, errShortPayload
	}
	return int(binary.LittleEndian.Uint16(data[1:3])), nil
}

// DecodeTemperature 解析 Temperature Measurement，返回摄氏度
// bytes 1-4 为 IEEE-11073 32 位 FLOAT；flags bit0 = 1 表示华氏度
func DecodeTemperature(data []byte) (float64, error) {
	if len(data) < 5 {
		return 0, errShortPayload
	}
	v, err := decodeFloat(binary.LittleEndian.Uint32(data[1:5]))
	if err != nil {
		return 0, err
	}
	if data[0]&0x01 != 0 {
		v = (v - 32) * 5 / 9
	}
	return math.Round(v*10) / 10, nil
}

// DecodeBloodPressure 解析 Blood Pressure Measurement，返回 mmHg
// bytes 1-2 收缩压、3-4 舒张压（SFLOAT）；flags bit0 = 1 表示 kPa
func DecodeBloodPressure(data []byte) (systolic, diastolic int, err error) {
	if len(data) < 5 {
		return 0, 0, errShortPayload
	}
	sys, err := decodeSFloat(binary.LittleEndian.Uint16(data[1:3]))
	if err != nil {
		return 0, 0, fmt.Errorf("systolic: %w", err)
	}
	dia, err := decodeSFloat(binary.LittleEndian.Uint16(data[3:5]))
	if err != nil {
		return 0, 0, fmt.Errorf("diastolic: %w", err)
	}
	if data[0]&0x01 != 0 {
		sys *= kPaToMmHg
		dia *= kPaToMmHg
	}
	return int(math.Round(sys)), int(math.Round(dia)), nil
}

// DecodePLXContinuous 解析 PLX Continuous Measurement
// bytes 1-2 血氧 %、3-4 脉率（SFLOAT）
func DecodePLXContinuous(data []byte) (spo2 float64, pulseRate int, err error) {
	if len(data) < 5 {
		return 0, 0, errShortPayload
	}
	spo2, err = decodeSFloat(binary.LittleEndian.Uint16(data[1:3]))
	if err != nil {
		return 0, 0, fmt.Errorf("spo2: %w", err)
	}
	pr, err := decodeSFloat(binary.LittleEndian.Uint16(data[3:5]))
	if err != nil {
		// 脉率缺失不影响血氧
		return spo2, 0, nil
	}
	return spo2, int(math.Round(pr)), nil
}

// DecodeBatteryLevel 解析 Battery Level（uint8 百分比）
func DecodeBatteryLevel(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, errShortPayload
	}
	level := int(data[0])
	if level > 100 {
		return 0, fmt.Errorf("battery level out of range: %d", level)
	}
	return level, nil
}

// decodeSFloat IEEE-11073 16 位 SFLOAT：4 位有符号指数 + 12 位有符号尾数
func decodeSFloat(raw uint16) (float64, error) {
	switch raw {
	case 0x07FF, 0x0800, 0x07FE, 0x0802, 0x0801: // NaN, NRes, +INF, -INF, reserved
		return 0, errSpecialValue
	}
	mantissa := int32(raw & 0x0FFF)
	if mantissa >= 0x0800 {
		mantissa -= 0x1000
	}
	exponent := int32(raw >> 12)
	if exponent >= 0x8 {
		exponent -= 0x10
	}
	return scale(float64(mantissa), int(exponent)), nil
}

// decodeFloat IEEE-11073 32 位 FLOAT：8 位有符号指数 + 24 位有符号尾数
func decodeFloat(raw uint32) (float64, error) {
	switch raw {
	case 0x007FFFFF, 0x00800000, 0x007FFFFE, 0x00800002, 0x00800001:
		return 0, errSpecialValue
	}
	mantissa := int32(raw & 0x00FFFFFF)
	if mantissa >= 0x00800000 {
		mantissa -= 0x01000000
	}
	exponent := int32(int8(raw >> 24))
	return scale(float64(mantissa), int(exponent)), nil
}

// scale 负指数时用除法，避免 0.1 这类二进制误差
func scale(mantissa float64, exponent int) float64 {
	if exponent < 0 {
		return mantissa / math.Pow10(-exponent)
	}
	return mantissa * math.Pow10(exponent)
}
