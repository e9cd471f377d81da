package fitbit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"firstaid-vitals/internal/adapter"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultBaseURL Fitbit Web API 地址
const DefaultBaseURL = "https://api.fitbit.com"

// Profile 用户资料
type Profile struct {
	User struct {
		EncodedID   string `json:"encodedId"`
		DisplayName string `json:"displayName"`
		Timezone    string `json:"timezone"`
	} `json:"user"`
}

// Device 已绑定设备
type Device struct {
	ID            string `json:"id"`
	DeviceVersion string `json:"deviceVersion"`
	Type          string `json:"type"`
	Battery       string `json:"battery"`
	BatteryLevel  *int   `json:"batteryLevel"`
	LastSyncTime  string `json:"lastSyncTime"`
}

// HeartRateIntraday 心率分钟级数据
type HeartRateIntraday struct {
	Intraday struct {
		Dataset []struct {
			Time  string `json:"time"` // "15:04:05"
			Value int    `json:"value"`
		} `json:"dataset"`
	} `json:"activities-heart-intraday"`
}

// SpO2Intraday 血氧分钟级数据
type SpO2Intraday struct {
	DateTime string `json:"dateTime"`
	Minutes  []struct {
		Value  float64 `json:"value"`
		Minute string  `json:"minute"` // "2006-01-02T15:04:05"
	} `json:"minutes"`
}

// CoreTemperature 核心体温记录
type CoreTemperature struct {
	TempCore []struct {
		DateTime string  `json:"dateTime"`
		Value    float64 `json:"value"`
	} `json:"tempCore"`
}

// BreathingRate 呼吸频率
type BreathingRate struct {
	BR []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			BreathingRate float64 `json:"breathingRate"`
		} `json:"value"`
	} `json:"br"`
}

// ClientConfig Fitbit 客户端配置
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// Client Fitbit Web API 客户端
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建 Fitbit 客户端，每个请求从令牌源取 access token
func NewClient(cfg ClientConfig, tokens oauth2.TokenSource, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "en_GB"). // 公制单位
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// 限流和服务端错误重试，授权错误不重试
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		}).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			tok, err := tokens.Token()
			if err != nil {
				return fmt.Errorf("%w: %v", adapter.ErrAuthorization, err)
			}
			req.SetAuthToken(tok.AccessToken)
			return nil
		})

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		Get(path)
	if err != nil {
		return fmt.Errorf("failed to call Fitbit API %s: %w", path, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return fmt.Errorf("%w: Fitbit API %s returned 401", adapter.ErrAuthorization, path)
	case resp.IsError():
		c.logger.Debug("Fitbit API returned error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("Fitbit API %s error (status: %d)", path, resp.StatusCode())
	}
	return nil
}

// GetProfile 获取用户资料（用于验证授权）
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.get(ctx, "/1/user/-/profile.json", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetDevices 获取已绑定设备
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.get(ctx, "/1/user/-/devices.json", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetHeartRateIntraday 获取某日 start-end（"15:04"）时间段的分钟级心率
func (c *Client) GetHeartRateIntraday(ctx context.Context, date, start, end string) (*HeartRateIntraday, error) {
	var hr HeartRateIntraday
	path := fmt.Sprintf("/1/user/-/activities/heart/date/%s/1d/1min/time/%s/%s.json", date, start, end)
	if err := c.get(ctx, path, &hr); err != nil {
		return nil, err
	}
	return &hr, nil
}

// GetSpO2Intraday 获取某日分钟级血氧
func (c *Client) GetSpO2Intraday(ctx context.Context, date string) (*SpO2Intraday, error) {
	var spo2 SpO2Intraday
	if err := c.get(ctx, fmt.Sprintf("/1/user/-/spo2/date/%s/all.json", date), &spo2); err != nil {
		return nil, err
	}
	return &spo2, nil
}

// GetCoreTemperature 获取某日核心体温
func (c *Client) GetCoreTemperature(ctx context.Context, date string) (*CoreTemperature, error) {
	var temp CoreTemperature
	if err := c.get(ctx, fmt.Sprintf("/1/user/-/temp/core/date/%s.json", date), &temp); err != nil {
		return nil, err
	}
	return &temp, nil
}

// GetBreathingRate 获取某日呼吸频率
func (c *Client) GetBreathingRate(ctx context.Context, date string) (*BreathingRate, error) {
	var br BreathingRate
	if err := c.get(ctx, fmt.Sprintf("/1/user/-/br/date/%s.json", date), &br); err != nil {
		return nil, err
	}
	return &br, nil
}
