package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch <endpoint> [block]",
		Short: "Fetch a block by number, or the best block",
		Long: `Fetch a block by number (decimal or 0x-prefixed hex), or the best block when
no number is given.`,
		Example: `  gavel fetch wss://rpc.polkadot.io 26
  gavel fetch wss://rpc.polkadot.io 0x1a --resolve 192.0.2.10 --metadata`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Endpoint = args[0]
			if len(args) > 1 {
				opts.Block = args[1]
			}

			ep, err := opts.endpoint()
			if err != nil {
				return err
			}
			if opts.Block != "" {
				// Fail before connecting.
				if opts.Block, err = NormalizeBlockNumber(opts.Block); err != nil {
					return err
				}
			}

			return a.run(cmd, ep, func(ctx context.Context, svc *BlockService) (json.RawMessage, error) {
				return svc.FetchBlock(ctx, opts.Block, opts.Metadata)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Resolve, "resolve", "r", "", "connect to this IPv4 address instead of resolving the endpoint host")
	cmd.Flags().BoolVarP(&opts.Metadata, "metadata", "m", false, "add node metadata to the block under \"metadata\"")
	return cmd
}
