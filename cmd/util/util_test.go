package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/evercookie/lib/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestConfigFromFlags(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	SetupConfigFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--data-dir", "/tmp/ec", "--container-version", "3", "--webrtc=false"}))
	require.NoError(t, viper.BindPFlags(cmd.PersistentFlags()))

	config := GetConfig()
	assert.Equal(t, "/tmp/ec", config.DataDir)
	assert.Equal(t, 3, config.ContainerVersion)
	assert.False(t, config.EnableWebRTC)
	assert.True(t, config.EnableCanvas)
	assert.Equal(t, common.DefaultContainerName, config.ContainerName)
	assert.NoError(t, config.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("EVERCOOKIE_MAX_RECOVERIES", "7")

	InitConfig()
	cmd := &cobra.Command{Use: "test"}
	SetupConfigFlags(cmd)
	require.NoError(t, viper.BindPFlags(cmd.PersistentFlags()))

	assert.Equal(t, 7, GetConfig().MaxSchemaRecoveries)
}
