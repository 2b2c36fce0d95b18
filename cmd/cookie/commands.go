package cookie

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/evercookie/cmd/util"
	"github.com/ValentinKolb/evercookie/lib/backend"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Stores a value for a key in all backends (a new UUID if no value is given)",
		Long: util.WrapString(`Stores a value for a key in all backends. If the key already exists in the
cookie, the durable or the session storage nothing is written. Without a value a random UUID is
stored. The command reports the async result if it arrives within --wait seconds, and always
lets the background writes finish before it exits.`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := uuid.NewString()
			if len(args) == 2 {
				value = args[1]
			}

			pending, err := client.Set(key, value)
			if err != nil {
				return err
			}
			if pending.Skipped() {
				fmt.Printf("key=%s already exists, nothing written\n", key)
				return nil
			}

			wait := time.Duration(waitSeconds) * time.Second
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			err = pending.Wait(ctx)
			timedOut := err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())
			fmt.Println(setReport(key, value, wait, err, timedOut))
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key from the first backend holding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, found := client.Get(cmd.Context(), key)
			fmt.Printf("key=%s, found=%v, value=%s\n", key, found, value)
			return nil
		},
	}
	inspectCmd = &cobra.Command{
		Use:   "inspect [key]",
		Short: "Reads the value for a key from every backend individually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, r := range client.Inspect(cmd.Context(), args[0]) {
				fmt.Println(r)
			}
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear [backend...]",
		Short: "Clears backends (cookie, durable, session, async) to simulate a user deleting data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := make([]backend.Kind, 0, len(args))
			for _, arg := range args {
				kind, err := backend.ParseKind(arg)
				if err != nil {
					return err
				}
				kinds = append(kinds, kind)
			}

			for _, kind := range kinds {
				b, ok := client.Backend(kind)
				if !ok {
					return fmt.Errorf("backend %s is not enabled", kind)
				}
				if err := b.Clear(cmd.Context()); err != nil {
					return fmt.Errorf("failed to clear %s: %w", kind, err)
				}
				fmt.Printf("%s cleared\n", kind)
			}
			return nil
		},
	}
	repairCmd = &cobra.Command{
		Use:   "repair",
		Short: "Rebuilds the object store container if its schema drifted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Repair(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("object store ok")
			return nil
		},
	}

	waitSeconds = 10
)

func init() {
	setCmd.Flags().IntVar(&waitSeconds, "wait", waitSeconds, util.WrapString("How many seconds to wait for the async store result before reporting it as pending"))
}

// setReport formats the outcome of a set. A timed out wait means the background writes are
// still running; the client finishes them when it is closed.
func setReport(key, value string, wait time.Duration, err error, timedOut bool) string {
	switch {
	case timedOut:
		return fmt.Sprintf("key=%s, value=%s stored (background writes still pending after %s, finishing before exit)", key, value, wait)
	case err != nil:
		return fmt.Sprintf("key=%s, value=%s stored (async store failed: %v)", key, value, err)
	default:
		return fmt.Sprintf("key=%s, value=%s stored", key, value)
	}
}
