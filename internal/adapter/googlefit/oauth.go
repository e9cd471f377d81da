package googlefit

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/fitness/v1"
)

// Scopes 只读取生命体征所需的权限
var Scopes = []string{
	fitness.FitnessHeartRateReadScope,
	fitness.FitnessBloodPressureReadScope,
	fitness.FitnessOxygenSaturationReadScope,
	fitness.FitnessBodyTemperatureReadScope,
}

// OAuthConfig 创建 Google OAuth 配置
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}
}

// TokenSource 使用已授权的 refresh token 创建自动刷新的令牌源
func TokenSource(ctx context.Context, cfg *oauth2.Config, refreshToken string) oauth2.TokenSource {
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}
