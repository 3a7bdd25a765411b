// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package config loads the optional ~/.gitu-config credential file and
// the GIT_* environment variables this module's consumers read to
// assemble a gitforge.Credentials value without hand-rolling lookup
// logic in every caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Credential is one entry in ~/.gitu-config's credentials list.
type Credential struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// Config is the parsed shape of ~/.gitu-config.
type Config struct {
	Credentials []Credential `yaml:"credentials"`
}

// Load reads and parses the YAML credential file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault loads ~/.gitu-config, returning an empty Config (not an
// error) if the file does not exist — the file is optional.
func LoadDefault() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return &Config{}, nil
	}

	path := filepath.Join(home, ".gitu-config")
	if _, err := os.Stat(path); err != nil {
		return &Config{}, nil
	}
	return Load(path)
}

// CredentialFor returns the first credential entry matching host, and
// whether one was found.
func (c *Config) CredentialFor(host string) (Credential, bool) {
	for _, cred := range c.Credentials {
		if cred.Host == host {
			return cred, true
		}
	}
	return Credential{}, false
}

// EnvCredentials is the subset of environment variables this module's
// CLI-facing consumers use to assemble a coordinate and its
// credentials, per the documented GIT_* environment surface.
type EnvCredentials struct {
	Host     string
	Project  string
	Username string
	Token    string
	URL      string
	CACert   string
	Verbose  bool
}

// EnvCredentialsFromEnviron reads GIT_HOST, GIT_PROJECT, GIT_USERNAME,
// GIT_TOKEN, GIT_URL, GIT_CA_CERT, and VERBOSE_LOGGING from the process
// environment.
func EnvCredentialsFromEnviron() EnvCredentials {
	return EnvCredentials{
		Host:     os.Getenv("GIT_HOST"),
		Project:  os.Getenv("GIT_PROJECT"),
		Username: os.Getenv("GIT_USERNAME"),
		Token:    os.Getenv("GIT_TOKEN"),
		URL:      os.Getenv("GIT_URL"),
		CACert:   os.Getenv("GIT_CA_CERT"),
		Verbose:  os.Getenv("VERBOSE_LOGGING") == "true" || os.Getenv("VERBOSE_LOGGING") == "1",
	}
}

// Resolve merges env credentials with a matching ~/.gitu-config entry,
// preferring explicit environment values and falling back to the
// config file entry for host when the environment lacks them.
func (c *Config) Resolve(env EnvCredentials) EnvCredentials {
	if env.Username != "" && env.Token != "" {
		return env
	}

	cred, ok := c.CredentialFor(env.Host)
	if !ok {
		return env
	}

	resolved := env
	if resolved.Username == "" {
		resolved.Username = cred.Username
	}
	if resolved.Token == "" {
		resolved.Token = cred.Token
	}
	return resolved
}
