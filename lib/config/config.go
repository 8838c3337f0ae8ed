// Package config loads the operator's broker configuration from an ini file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/vaughan0/go-ini"
)

const (
	ProviderOkta    = "okta"
	ProviderBastion = "bastion"

	// FileEnv overrides the default config file location.
	FileEnv = "FIGGY_CONFIG_FILE"

	DefaultRegion          = "us-east-1"
	DefaultSessionDuration = time.Hour
	DefaultExpiryWindow    = 5 * time.Minute
	DefaultWorkers         = 5
	DefaultCacheFile       = "~/.figgy/cache/sts-sessions.json"
	DefaultKeyringDir      = "~/.figgy/keyring/"

	MinSessionDuration = 15 * time.Minute
	MaxSessionDuration = 12 * time.Hour
	MaxWorkers         = 10

	figgySection = "figgy"
	oktaSection  = "okta"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type OktaConfig struct {
	// Domain is the Okta org host, e.g. acme.okta.com
	Domain string
	// AppLink is the embed link of the AWS app in Okta.
	AppLink string
	// FactorType picks the MFA factor, e.g. token:software:totp or push.
	FactorType string
}

type Config struct {
	User string
	// Provider selects the session provider: okta or bastion.
	Provider string
	// AWSProfile is the local profile the bastion provider authenticates with.
	AWSProfile      string
	Region          string
	MFAEnabled      bool
	DefaultEnv      string
	DefaultRole     string
	SessionDuration time.Duration
	ExpiryWindow    time.Duration
	CacheFile       string
	KeyringDir      string
	Workers         int

	Okta OktaConfig
}

// FileFromEnv returns FIGGY_CONFIG_FILE or ~/.figgy/config.
func FileFromEnv() (string, error) {
	if file := os.Getenv(FileEnv); file != "" {
		return file, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".figgy", "config"), nil
}

// Load parses file, applies defaults and validates the result.
func Load(file string) (*Config, error) {
	log.Debugf("Parsing config file %s", file)
	f, err := ini.LoadFile(file)
	if err != nil {
		return nil, fmt.Errorf("Error parsing config file %q: %v", file, err)
	}

	c, err := FromFile(f)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromFile reads the known sections of a parsed ini file without applying
// defaults.
func FromFile(f ini.File) (*Config, error) {
	figgy := f.Section(figgySection)
	okta := f.Section(oktaSection)

	c := &Config{
		User:        figgy["user"],
		Provider:    strings.ToLower(figgy["provider"]),
		AWSProfile:  figgy["profile"],
		Region:      figgy["region"],
		DefaultEnv:  figgy["env"],
		DefaultRole: figgy["role"],
		CacheFile:   figgy["cache_file"],
		KeyringDir:  figgy["keyring_dir"],
		Okta: OktaConfig{
			Domain:     okta["domain"],
			AppLink:    okta["app_link"],
			FactorType: okta["factor_type"],
		},
	}

	var err error
	if v, ok := figgy["mfa_enabled"]; ok {
		if c.MFAEnabled, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("mfa_enabled: %v: %w", err, ErrInvalid)
		}
	}
	if v, ok := figgy["session_duration"]; ok {
		if c.SessionDuration, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("session_duration: %v: %w", err, ErrInvalid)
		}
	}
	if v, ok := figgy["expiry_window"]; ok {
		if c.ExpiryWindow, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("expiry_window: %v: %w", err, ErrInvalid)
		}
	}
	if v, ok := figgy["workers"]; ok {
		if c.Workers, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("workers: %v: %w", err, ErrInvalid)
		}
	}
	return c, nil
}

// updates configuration with package provided defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOkta
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.SessionDuration == 0 {
		c.SessionDuration = DefaultSessionDuration
	}
	if c.ExpiryWindow == 0 {
		c.ExpiryWindow = DefaultExpiryWindow
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.CacheFile == "" {
		c.CacheFile = DefaultCacheFile
	}
	if c.KeyringDir == "" {
		c.KeyringDir = DefaultKeyringDir
	}
	if expanded, err := homedir.Expand(c.CacheFile); err == nil {
		c.CacheFile = expanded
	}
	if expanded, err := homedir.Expand(c.KeyringDir); err == nil {
		c.KeyringDir = expanded
	}
}

// validates configuration options.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOkta:
		if c.Okta.Domain == "" {
			return fmt.Errorf("[okta] domain is required for the okta provider: %w", ErrInvalid)
		}
		if c.Okta.AppLink == "" {
			return fmt.Errorf("[okta] app_link is required for the okta provider: %w", ErrInvalid)
		}
	case ProviderBastion:
	default:
		return fmt.Errorf("unknown provider %q, expected %s or %s: %w", c.Provider, ProviderOkta, ProviderBastion, ErrInvalid)
	}

	if c.SessionDuration < MinSessionDuration {
		return fmt.Errorf("minimum session duration is %s: %w", MinSessionDuration, ErrInvalid)
	} else if c.SessionDuration > MaxSessionDuration {
		return fmt.Errorf("maximum session duration is %s: %w", MaxSessionDuration, ErrInvalid)
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d: %w", MaxWorkers, ErrInvalid)
	}
	return nil
}
