package model

import (
	"time"

	"golang.org/x/oauth2"
)

// Workspace is the per-run scratch area. Everything a run writes lives under Root.
type Workspace struct {
	Root           string
	SourceDir      string // Checked-out repository
	ConfigDir      string // Isolated cloud CLI configuration
	CredentialFile string // external_account credential config, set by authenticate
}

// Checkout is the result of retrieving repository content
type Checkout struct {
	Dir       string
	CommitSHA string
	Files     int
}

// Credential is the short-lived cloud credential of one run
type Credential struct {
	TokenSource    oauth2.TokenSource `json:"-"`
	ConfigFile     string
	ServiceAccount string `masq:"secret"`
	ExpiresAt      time.Time
}

// CommandResult holds the outcome of an external command
type CommandResult struct {
	Args     []string
	Output   []byte
	ExitCode int
	Duration time.Duration
}

// ServiceInfo is what the platform reports after a deploy
type ServiceInfo struct {
	URI      string
	Revision string
}
