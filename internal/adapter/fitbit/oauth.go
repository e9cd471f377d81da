package fitbit

import (
	"context"

	"golang.org/x/oauth2"
)

// Endpoint Fitbit OAuth 2.0 端点
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://www.fitbit.com/oauth2/authorize",
	TokenURL:  "https://api.fitbit.com/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Scopes 读取生命体征所需的权限
var Scopes = []string{"heartrate", "oxygen_saturation", "temperature", "respiratory_rate", "profile", "settings"}

// OAuthConfig 创建 Fitbit OAuth 配置
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     Endpoint,
		Scopes:       Scopes,
	}
}

// TokenSource 使用已授权的 refresh token 创建自动刷新的令牌源
func TokenSource(ctx context.Context, cfg *oauth2.Config, refreshToken string) oauth2.TokenSource {
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}
