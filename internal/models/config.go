package models

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Governance GovernanceConfig
	Sweeper    SweeperConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	SeedAccounts    bool
}

// ServerConfig holds the REST API settings
type ServerConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// GovernanceConfig holds governance policy values. The tier-to-power mapping
// lives in a separate YAML file (TiersFile) so policy stays out of the code.
type GovernanceConfig struct {
	ProposalThreshold   int64
	DefaultDurationDays int
	TiersFile           string
}

// SweeperConfig holds proposal expiry sweeper settings
type SweeperConfig struct {
	Interval time.Duration
}
