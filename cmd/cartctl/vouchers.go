package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/voucher"
)

var vouchersTable string

func vouchersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vouchers",
		Short: "List the static voucher table",
		Long: `List the voucher codes the API accepts when VOUCHER_SOURCE=static.

The table is read from --table, then VOUCHER_TABLE, then the built-in default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := vouchersTable
			if raw == "" {
				envs, err := config.LoadEnv()
				if err != nil {
					return err
				}
				raw = envs.String("VOUCHER_TABLE", voucher.DefaultTable)
			}
			reg, err := voucher.ParseTable(raw)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tDISCOUNT")
			for _, rule := range reg.Rules() {
				fmt.Fprintf(tw, "%s\t%s%%\n", rule.Code, strconv.FormatFloat(rule.Discount, 'f', -1, 64))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&vouchersTable, "table", "", "CODE:PCT list overriding VOUCHER_TABLE")

	return cmd
}
