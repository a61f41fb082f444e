package config

import (
	"errors"

	"github.com/spf13/viper"
)

// ServerSettings configures the webhook service. Values come from the
// environment (GITHUB_APP_ID, GITHUB_APP_PRIVATE_KEY, ...) with an optional
// config file underneath.
type ServerSettings struct {
	GitHubAppID         string
	GitHubAppPrivateKey string
	GitHubWebhookSecret string
	GitHubAPIURL        string

	AppName     string
	ListenAddr  string
	LogLevel    string
	Environment string
}

// LoadServerSettings resolves settings from the environment, falling back
// to configFile (yaml) when given, then to defaults. The three GitHub App
// credentials are required.
func LoadServerSettings(configFile string) (*ServerSettings, error) {
	v := viper.New()
	v.SetDefault("github_api_url", "https://api.github.com")
	v.SetDefault("app_name", "FedRAMP KSI Evidence Service")
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "production")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := &ServerSettings{
		GitHubAppID:         v.GetString("github_app_id"),
		GitHubAppPrivateKey: v.GetString("github_app_private_key"),
		GitHubWebhookSecret: v.GetString("github_webhook_secret"),
		GitHubAPIURL:        v.GetString("github_api_url"),
		AppName:             v.GetString("app_name"),
		ListenAddr:          v.GetString("listen_addr"),
		LogLevel:            v.GetString("log_level"),
		Environment:         v.GetString("environment"),
	}

	switch {
	case settings.GitHubAppID == "":
		return nil, errors.New("github_app_id is required")
	case settings.GitHubAppPrivateKey == "":
		return nil, errors.New("github_app_private_key is required")
	case settings.GitHubWebhookSecret == "":
		return nil, errors.New("github_webhook_secret is required")
	}

	return settings, nil
}
