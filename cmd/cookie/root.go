package cookie

import (
	"github.com/ValentinKolb/evercookie/cmd/util"
	"github.com/ValentinKolb/evercookie/lib/evercookie"
	"github.com/spf13/cobra"
)

var (
	client *evercookie.Client

	// Commands are the record commands of the CLI, each one runs against a client opened from
	// the configuration
	Commands = []*cobra.Command{setCmd, getCmd, inspectCmd, clearCmd, repairCmd, perfTestCmd}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	for _, c := range Commands {
		c.PreRunE = chain(setupClient, c.PreRunE)
		c.PostRunE = closeClient
	}
}

// setupClient opens the client used by the command
func setupClient(cmd *cobra.Command, _ []string) error {
	var err error
	client, err = util.OpenClient(cmd)
	return err
}

func closeClient(*cobra.Command, []string) error {
	err := util.CloseClient(client)
	client = nil
	return err
}

type runE = func(cmd *cobra.Command, args []string) error

// chain runs the given functions in order and stops at the first error
func chain(fns ...runE) runE {
	return func(cmd *cobra.Command, args []string) error {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(cmd, args); err != nil {
				return err
			}
		}
		return nil
	}
}
