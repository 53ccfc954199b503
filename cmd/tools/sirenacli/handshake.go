package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sirena/pkg/client"
	"sirena/pkg/proto/envelope"
)

func newHandshakeCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "handshake",
		Short: "Negotiate a symmetric key and check it with a key_info query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient()
			if err != nil {
				return err
			}
			defer cli.Close()

			ctx := cmd.Context()
			return cli.Do(ctx, func(s client.ISession) error {
				if err := s.Handshake(ctx, force); err != nil {
					return err
				}
				return printKeyInfo(ctx, cmd, s)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore a cached key")
	return cmd
}

func printKeyInfo(ctx context.Context, cmd *cobra.Command, s client.ISession) error {
	resp, err := s.Query(ctx, envelope.NewQuery("key_info", nil))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "handshake ok")
	fmt.Fprintln(cmd.OutOrStdout(), resp.Payload)
	return nil
}
