package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func newMMRCmd(a *app) *cobra.Command {
	var opts mmrOptions

	cmd := &cobra.Command{
		Use:   "mmr <endpoint> [n1,n2,... | n1 n2 ...]",
		Short: "Generate an MMR proof for block numbers, or for the best block",
		Example: `  gavel mmr wss://rpc.polkadot.io 1,2,3
  gavel mmr wss://rpc.polkadot.io 1 2 3
  gavel mmr wss://rpc.polkadot.io --resolve 192.0.2.10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Endpoint = args[0]
			// Numbers may be comma separated, space separated or both.
			opts.Numbers = strings.Join(args[1:], ",")

			ep, err := opts.endpoint()
			if err != nil {
				return err
			}
			numbers, err := ParseBlockNumbers(opts.Numbers)
			if err != nil {
				return err
			}

			return a.run(cmd, ep, func(ctx context.Context, svc *BlockService) (json.RawMessage, error) {
				return svc.FetchMMRProof(ctx, numbers)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Resolve, "resolve", "r", "", "connect to this IPv4 address instead of resolving the endpoint host")
	return cmd
}
