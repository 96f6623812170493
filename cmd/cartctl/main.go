package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cartctl",
		Short:         "cartctl - offline pricing and catalog tooling for toko-cart",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(vouchersCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(migrateCmd())

	return rootCmd
}
