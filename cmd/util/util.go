package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/evercookie/lib/common"
	"github.com/ValentinKolb/evercookie/lib/evercookie"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupConfigFlags adds the client configuration flags to a command
func SetupConfigFlags(cmd *cobra.Command) {
	def := common.DefaultConfig()

	key := "data-dir"
	cmd.PersistentFlags().String(key, def.DataDir, WrapString("Directory holding the cookie jar, the durable storage and the object store container"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Write the client metrics in Prometheus text format to stderr after the command"))

	key = "cookie-max-age"
	cmd.PersistentFlags().Int(key, def.CookieMaxAgeSeconds, WrapString("Max-Age of the cookie in seconds"))

	key = "cookie-path"
	cmd.PersistentFlags().String(key, def.CookiePath, WrapString("Path attribute of the cookie"))

	key = "storage-quota"
	cmd.PersistentFlags().Int(key, def.StorageQuotaBytes, WrapString("Quota of the durable and session storage in bytes (0 = 5 MiB, negative = unlimited)"))

	key = "container"
	cmd.PersistentFlags().String(key, def.ContainerName, WrapString("Name of the object store container"))

	key = "container-version"
	cmd.PersistentFlags().Int(key, def.ContainerVersion, WrapString("Version the object store container is opened with"))

	key = "object-store"
	cmd.PersistentFlags().String(key, def.ObjectStoreName, WrapString("Name of the object store holding the records"))

	key = "max-recoveries"
	cmd.PersistentFlags().Int(key, def.MaxSchemaRecoveries, WrapString("How many times a drifted container is rebuilt per operation"))

	key = "webrtc"
	cmd.PersistentFlags().Bool(key, def.EnableWebRTC, WrapString("Write the WebRTC side channel"))

	key = "canvas"
	cmd.PersistentFlags().Bool(key, def.EnableCanvas, WrapString("Write the canvas side channel"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("evercookie")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the client configuration from viper
func GetConfig() common.Config {
	return common.Config{
		DataDir:             viper.GetString("data-dir"),
		CookieMaxAgeSeconds: viper.GetInt("cookie-max-age"),
		CookiePath:          viper.GetString("cookie-path"),
		StorageQuotaBytes:   viper.GetInt("storage-quota"),
		ContainerName:       viper.GetString("container"),
		ContainerVersion:    viper.GetInt("container-version"),
		ObjectStoreName:     viper.GetString("object-store"),
		MaxSchemaRecoveries: viper.GetInt("max-recoveries"),
		EnableWebRTC:        viper.GetBool("webrtc"),
		EnableCanvas:        viper.GetBool("canvas"),
		LogLevel:            viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// OpenClient binds the flags of cmd, sets up logging and opens a client from the configuration
func OpenClient(cmd *cobra.Command) (*evercookie.Client, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	config := GetConfig()
	if err := common.InitLoggers(config.LogLevel, os.Stderr); err != nil {
		return nil, err
	}
	return evercookie.Open(config)
}

// CloseClient waits for the pending writes of the client, closes it and dumps its metrics if
// requested
func CloseClient(client *evercookie.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}
	if viper.GetBool("metrics") {
		client.WritePrometheus(os.Stderr)
	}
	return nil
}
