package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeartRate(t *testing.T) {
	hr, err := DecodeHeartRate([]byte{0x00, 72})
	require.NoError(t, err)
	assert.Equal(t, 72, hr)

	// uint16 格式，后面跟着 RR 间期
	hr, err = DecodeHeartRate([]byte{0x11, 0x2C, 0x01, 0x00, 0x04})
	require.NoError(t, err)
	assert.Equal(t, 300, hr)

	_, err = DecodeHeartRate([]byte{0x01, 0x2C})
	assert.Error(t, err)
	_, err = DecodeHeartRate(nil)
	assert.Error(t, err)
}

func TestDecodeTemperature(t *testing.T) {
	// 367 x 10^-1 摄氏度
	c, err := DecodeTemperature([]byte{0x00, 0x6F, 0x01, 0x00, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, 36.7, c)

	// 98.6 华氏度
	c, err = DecodeTemperature([]byte{0x01, 0xDA, 0x03, 0x00, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, 37.0, c)

	// NaN
	_, err = DecodeTemperature([]byte{0x00, 0xFF, 0xFF, 0x7F, 0x00})
	assert.ErrorIs(t, err, errSpecialValue)

	_, err = DecodeTemperature([]byte{0x00, 0x6F, 0x01})
	assert.ErrorIs(t, err, errShortPayload)
}

func TestDecodeBloodPressure(t *testing.T) {
	sys, dia, err := DecodeBloodPressure([]byte{0x00, 0x78, 0x00, 0x50, 0x00, 0x5A, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 120, sys)
	assert.Equal(t, 80, dia)

	// 16.0 kPa / 10.7 kPa
	sys, dia, err = DecodeBloodPressure([]byte{0x01, 0xA0, 0xF0, 0x6B, 0xF0})
	require.NoError(t, err)
	assert.Equal(t, 120, sys)
	assert.Equal(t, 80, dia)

	_, _, err = DecodeBloodPressure([]byte{0x00, 0xFF, 0x07, 0x50, 0x00})
	assert.ErrorIs(t, err, errSpecialValue)
}

func TestDecodePLXContinuous(t *testing.T) {
	spo2, pr, err := DecodePLXContinuous([]byte{0x00, 0x61, 0x00, 0x48, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 97.0, spo2)
	assert.Equal(t, 72, pr)

	// 脉率为 NaN 时仍返回血氧
	spo2, pr, err = DecodePLXContinuous([]byte{0x00, 0x61, 0x00, 0xFF, 0x07})
	require.NoError(t, err)
	assert.Equal(t, 97.0, spo2)
	assert.Equal(t, 0, pr)
}

func TestDecodeBatteryLevel(t *testing.T) {
	level, err := DecodeBatteryLevel([]byte{87})
	require.NoError(t, err)
	assert.Equal(t, 87, level)

	_, err = DecodeBatteryLevel([]byte{101})
	assert.Error(t, err)
	_, err = DecodeBatteryLevel(nil)
	assert.Error(t, err)
}

func TestDecodeSFloat(t *testing.T) {
	v, err := decodeSFloat(0x0FFF)
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)

	v, err = decodeSFloat(0xF0A0)
	require.NoError(t, err)
	assert.Equal(t, 16.0, v)

	v, err = decodeSFloat(0x1005)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)

	for _, raw := range []uint16{0x07FF, 0x0800, 0x07FE, 0x0802, 0x0801} {
		_, err := decodeSFloat(raw)
		assert.ErrorIs(t, err, errSpecialValue)
	}
}

func TestDecodeFloat(t *testing.T) {
	v, err := decodeFloat(0xFE000E6A) // 3690 x 10^-2
	require.NoError(t, err)
	assert.Equal(t, 36.9, v)

	v, err = decodeFloat(0x00FFFFFF)
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)

	for _, raw := range []uint32{0x007FFFFF, 0x00800000, 0x007FFFFE, 0x00800002, 0x00800001} {
		_, err := decodeFloat(raw)
		assert.ErrorIs(t, err, errSpecialValue)
	}
}
