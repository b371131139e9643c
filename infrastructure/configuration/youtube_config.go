package configuration

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// YouTubeTokenFile is where the OAuth callback stores tokens for the API adapter.
const YouTubeTokenFile = "token.json"

// YouTubeToken is the on-disk form of a consented OAuth token.
type YouTubeToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// YouTubeConfig holds the credentials for the Data API adapter
type YouTubeConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	AccessToken  string   `mapstructure:"access_token"`
	RefreshToken string   `mapstructure:"refresh_token"`
	APIKey       string   `mapstructure:"api_key"`
	Scopes       []string `mapstructure:"scopes"`
}

// HasCredentials reports whether either API-key or OAuth mode is usable.
func (c *YouTubeConfig) HasCredentials() bool {
	return c.APIKey != "" || (c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "")
}

// GetYouTubeConfig returns YouTube configuration from JSON config with environment variable fallback
func GetYouTubeConfig() (*YouTubeConfig, error) {
	scheme := "http"
	if C.App.TLSEnabled {
		scheme = "https"
	}
	port := C.App.Port
	if port == 0 {
		port = 10001
	}
	defaultRedirect := fmt.Sprintf("%s://localhost:%d/auth/youtube/callback", scheme, port)
	config := &YouTubeConfig{
		ClientID:     getConfigValue(C.YouTube.ClientID, "YOUTUBE_CLIENT_ID", ""),
		ClientSecret: getConfigValue(C.YouTube.ClientSecret, "YOUTUBE_CLIENT_SECRET", ""),
		RedirectURL:  getConfigValue(C.YouTube.RedirectURI, "YOUTUBE_REDIRECT_URL", defaultRedirect),
		AccessToken:  getEnv("YOUTUBE_ACCESS_TOKEN", ""),
		RefreshToken: getEnv("YOUTUBE_REFRESH_TOKEN", ""),
		APIKey:       getConfigValue(C.YouTube.APIKey, "YOUTUBE_API_KEY", ""),
		Scopes:       C.YouTube.Scopes,
	}

	// Fallback: tokens saved by an earlier OAuth consent
	if config.AccessToken == "" || config.RefreshToken == "" {
		if saved, err := LoadYouTubeToken(YouTubeTokenFile); err == nil {
			if config.AccessToken == "" {
				config.AccessToken = saved.AccessToken
			}
			if config.RefreshToken == "" {
				config.RefreshToken = saved.RefreshToken
			}
		}
	}

	// Missing credentials are not an error here; the API adapter reports not_configured instead.
	return config, nil
}

// getConfigValue gets value from config first, then environment variable, then default
func getConfigValue(configValue, envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}

// LoadYouTubeToken reads a token saved by SaveYouTubeToken.
func LoadYouTubeToken(path string) (*YouTubeToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok YouTubeToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return &tok, nil
}

// SaveYouTubeToken writes the token with owner-only permissions.
func SaveYouTubeToken(path string, tok YouTubeToken) error {
	if tok.RefreshToken == "" {
		return fmt.Errorf("refusing to save a token without refresh_token")
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
