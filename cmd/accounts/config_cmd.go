// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/holomush/accounts/internal/config"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	return newConfigCmdWithLoader(config.LoadUnvalidated)
}

func newConfigCmdWithLoader(load func(config.LoadOptions) (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(config.LoadOptions{
				ConfigFile: configFileFlag(cmd),
				Flags:      cmd.Flags(),
			})
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
			}
			cmd.Print(string(out))

			if err := cfg.Validate(); err != nil {
				cmd.PrintErrln("warning: configuration is not valid for serve:", err)
			}
			return nil
		},
	}
	config.RegisterFlags(printCmd.Flags())
	cmd.AddCommand(printCmd)

	return cmd
}
