package common

import (
	"fmt"
	"path/filepath"
	"strings"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultCookieMaxAgeSeconds = 31536000 // one year
	DefaultContainerName       = "evercookieDB"
	DefaultContainerVersion    = 2
	DefaultObjectStoreName     = "store"
	DefaultMaxRecoveries       = 3
)

// File names below Config.DataDir
const (
	cookieFile  = "cookies.json"
	durableFile = "localStorage.maple"
)

// --------------------------------------------------------------------------
// Configuration struct
// --------------------------------------------------------------------------

// Config holds all parameters needed to assemble an evercookie client from its substrates.
type Config struct {
	// DataDir is the directory holding all persisted substrates
	DataDir string

	// Cookie substrate
	CookieMaxAgeSeconds int
	CookiePath          string

	// Web storage quota in bytes (0 = default, <0 = unlimited)
	StorageQuotaBytes int

	// Asynchronous object store
	ContainerName       string
	ContainerVersion    int
	ObjectStoreName     string
	MaxSchemaRecoveries int

	// Side channels
	EnableWebRTC bool
	EnableCanvas bool

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns the configuration used when nothing else is specified.
func DefaultConfig() Config {
	return Config{
		DataDir:             "data",
		CookieMaxAgeSeconds: DefaultCookieMaxAgeSeconds,
		CookiePath:          "/",
		ContainerName:       DefaultContainerName,
		ContainerVersion:    DefaultContainerVersion,
		ObjectStoreName:     DefaultObjectStoreName,
		MaxSchemaRecoveries: DefaultMaxRecoveries,
		EnableWebRTC:        true,
		EnableCanvas:        true,
		LogLevel:            "info",
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.CookieMaxAgeSeconds <= 0 {
		return fmt.Errorf("cookie max age must be positive, got %d", c.CookieMaxAgeSeconds)
	}
	if !strings.HasPrefix(c.CookiePath, "/") {
		return fmt.Errorf("cookie path must start with /, got %q", c.CookiePath)
	}
	if c.ContainerName == "" || c.ObjectStoreName == "" {
		return fmt.Errorf("container and object store name are required")
	}
	if c.ContainerVersion < 1 {
		return fmt.Errorf("container version must be >= 1, got %d", c.ContainerVersion)
	}
	if c.MaxSchemaRecoveries < 0 {
		return fmt.Errorf("max schema recoveries must be >= 0, got %d", c.MaxSchemaRecoveries)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// CookieFile returns the path of the cookie jar file
func (c *Config) CookieFile() string {
	return filepath.Join(c.DataDir, cookieFile)
}

// DurableFile returns the path of the durable storage snapshot
func (c *Config) DurableFile() string {
	return filepath.Join(c.DataDir, durableFile)
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Data Directory", c.DataDir)
	addField("Cookie Jar", c.CookieFile())
	addField("Durable Storage", c.DurableFile())
	addField("Storage Quota", fmt.Sprintf("%d bytes", c.StorageQuotaBytes))

	addSection("Cookie")
	addField("Path", c.CookiePath)
	addField("Max Age", fmt.Sprintf("%d sec", c.CookieMaxAgeSeconds))

	addSection("Object Store")
	addField("Container", c.ContainerName)
	addField("Version", fmt.Sprintf("%d", c.ContainerVersion))
	addField("Object Store", c.ObjectStoreName)
	addField("Max Recoveries", fmt.Sprintf("%d", c.MaxSchemaRecoveries))

	addSection("Side Channels")
	addField("WebRTC", fmt.Sprintf("%t", c.EnableWebRTC))
	addField("Canvas", fmt.Sprintf("%t", c.EnableCanvas))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
