// Package config loads the updater settings from the environment and an optional dotenv file.
package config

import (
	"github.com/Travis-Britz/cfddns"
	"github.com/spf13/viper"
)

// Setting names, as read from the environment.
const (
	APIKey             = "CLOUDFLARE_API_KEY"
	Email              = "CLOUDFLARE_EMAIL"
	DomainName         = "DOMAIN_NAME"
	Subdomain          = "SUBDOMAIN"
	ConfigFilePath     = "CONFIG_FILE_PATH"
	LogFilePath        = "LOG_FILE_PATH"
	LogLevel           = "LOG_LEVEL"
	UseProxy           = "USE_PROXY"
	IPServicePrimary   = "IP_SERVICE_PRIMARY"
	IPServiceSecondary = "IP_SERVICE_SECONDARY"
	APIURL             = "CLOUDFLARE_API_URL"
	FailOnError        = "FAIL_ON_ERROR"
)

var required = []string{APIKey, Email, DomainName}

// Config is the resolved set of settings for one run.
type Config struct {
	APIKey    string
	Email     string
	Domain    string
	Subdomain string

	// CacheFile is the JSON document holding the zone and record identifiers.
	CacheFile string
	LogFile   string
	LogLevel  string
	UseProxy  bool

	IPServicePrimary   string
	IPServiceSecondary string
	APIURL             string

	FailOnError bool
}

func defaults(v *viper.Viper) {
	v.SetDefault(Subdomain, "@")
	v.SetDefault(ConfigFilePath, "config.json")
	v.SetDefault(LogFilePath, "")
	v.SetDefault(LogLevel, "info")
	v.SetDefault(UseProxy, false)
	v.SetDefault(IPServicePrimary, ddns.DefaultPrimaryIPService)
	v.SetDefault(IPServiceSecondary, ddns.DefaultSecondaryIPService)
	v.SetDefault(APIURL, "")
	v.SetDefault(FailOnError, true)
}

// Load reads settings from the process environment.
// If envFile is not empty it is read first as a dotenv file;
// variables already present in the environment take precedence over it.
//
// A missing required setting is a *ddns.ConfigError naming it.
func Load(envFile string) (*Config, error) {
	return load(envFile, true)
}

// LoadLocal is Load without the credential and domain checks,
// for commands that only touch local files.
func LoadLocal(envFile string) (*Config, error) {
	return load(envFile, false)
}

func load(envFile string, strict bool) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, &ddns.ConfigError{Msg: "error reading env file", Path: envFile, Err: err}
		}
	}

	for _, key := range required {
		if strict && v.GetString(key) == "" {
			return nil, &ddns.ConfigError{Msg: key + " is not set"}
		}
	}

	return &Config{
		APIKey:             v.GetString(APIKey),
		Email:              v.GetString(Email),
		Domain:             v.GetString(DomainName),
		Subdomain:          v.GetString(Subdomain),
		CacheFile:          v.GetString(ConfigFilePath),
		LogFile:            v.GetString(LogFilePath),
		LogLevel:           v.GetString(LogLevel),
		UseProxy:           v.GetBool(UseProxy),
		IPServicePrimary:   v.GetString(IPServicePrimary),
		IPServiceSecondary: v.GetString(IPServiceSecondary),
		APIURL:             v.GetString(APIURL),
		FailOnError:        v.GetBool(FailOnError),
	}, nil
}

// Cloudflare returns the provider settings.
func (c *Config) Cloudflare() ddns.CloudflareConfig {
	return ddns.CloudflareConfig{
		APIKey:   c.APIKey,
		Email:    c.Email,
		Domain:   c.Domain,
		BaseURL:  c.APIURL,
		UseProxy: c.UseProxy,
	}
}
