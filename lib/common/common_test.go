package common

import (
	"bytes"
	"log"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, "evercookieDB", c.ContainerName)
	assert.Equal(t, 2, c.ContainerVersion)
	assert.Equal(t, "store", c.ObjectStoreName)
	assert.Equal(t, 31536000, c.CookieMaxAgeSeconds)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty data dir":    func(c *Config) { c.DataDir = "" },
		"zero max age":      func(c *Config) { c.CookieMaxAgeSeconds = 0 },
		"no container":      func(c *Config) { c.ContainerName = "" },
		"zero version":      func(c *Config) { c.ContainerVersion = 0 },
		"negative recovery": func(c *Config) { c.MaxSchemaRecoveries = -1 },
		"unknown log level": func(c *Config) { c.LogLevel = "verbose" },
		"no object store":   func(c *Config) { c.ObjectStoreName = "" },
		"relative path":     func(c *Config) { c.CookiePath = "app" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfigString(t *testing.T) {
	c := DefaultConfig()
	s := c.String()
	assert.Contains(t, s, "OBJECT STORE")
	assert.Contains(t, s, "evercookieDB")
	assert.Contains(t, s, c.DurableFile())
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, logger.WARNING, lvl)

	_, err = ParseLogLevel("nope")
	assert.Error(t, err)
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &ecLogger{name: "backend", level: logger.INFO}
	l.logger = log.New(&buf, "", 0)

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "INFO  | backend     | shown 2")

	l.SetLevel(logger.DEBUG)
	l.Debugf("now visible")
	assert.Contains(t, buf.String(), "DEBUG | backend     | now visible")
}
