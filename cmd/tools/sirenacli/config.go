package main

import (
	"github.com/spf13/cobra"

	"sirena/pkg/cfg"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as Key=value lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			conf.PrivateKey = redact(conf.PrivateKey)
			var c cfg.Config
			if err = c.ReadFrom(&conf); err != nil {
				return err
			}
			c.WriteToKVList(cmd.OutOrStdout())
			return nil
		},
	}
}

func redact(s string) string {
	if s == "" {
		return s
	}
	return "<redacted>"
}
