package models

import (
	"fmt"
	"strings"
)

// Platform 数据源平台
type Platform string

const (
	PlatformBLE       Platform = "ble"       // 通用蓝牙低功耗设备
	PlatformGoogleFit Platform = "googlefit" // Google Fit
	PlatformFitbit    Platform = "fitbit"    // Fitbit Web API
)

// AllPlatforms 返回全部平台（固定顺序）
func AllPlatforms() []Platform {
	return []Platform{PlatformBLE, PlatformGoogleFit, PlatformFitbit}
}

// ParsePlatform 解析平台名称
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PlatformBLE, PlatformGoogleFit, PlatformFitbit:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform: %q", s)
}

// String 实现 fmt.Stringer
func (p Platform) String() string {
	return string(p)
}
