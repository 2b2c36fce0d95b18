package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/evercookie/cmd/cookie"
	"github.com/ValentinKolb/evercookie/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "evercookie",
		Short: "redundant identifier storage",
		Long: fmt.Sprintf(`evercookie (v%s)

Stores an identifier redundantly in a cookie jar, durable and session
web storage, a versioned object store and write-only side channels, and
reads it back from the first substrate that still holds it.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of evercookie",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("evercookie v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(cookie.Commands...)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupConfigFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
