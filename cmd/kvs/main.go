// Command kvs is the network client CLI: set/get/rm subcommands talking
// to a running kvs-server over the wire protocol in internal/protocol.
// Grounded on original_source/src/bin/kvs-client.rs, restructured as
// cobra subcommands per SPEC_FULL.md §2's CLI stack.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arrowkv/kvs/internal/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:     "kvs",
		Short:   "Key-value storage client",
		Version: "0.1.0",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:4000", "server address with format IP:PORT")

	root.AddCommand(newSetCmd(&addr), newGetCmd(&addr), newRmCmd(&addr))
	return root
}

func newSetCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Sets a value for a given key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(*addr)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Set(args[0], args[1])
		},
	}
}

func newGetCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Returns the value for a given key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(*addr)
			if err != nil {
				return err
			}
			defer c.Close()
			value, err := c.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
}

func newRmCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm KEY",
		Short: "Removes the entry for a given key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(*addr)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Remove(args[0])
		},
	}
}
