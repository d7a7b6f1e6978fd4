package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Sternrassler/branchdesk/pkg/config"
	"github.com/Sternrassler/branchdesk/pkg/logging"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := config.Default()
			if opts.apiURL != "" {
				cfg.API.BaseURL = opts.apiURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(opts.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", opts.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.Auth.Token = logging.Redact(cfg.Auth.Token)
			cfg.Redis.Password = logging.Redact(cfg.Redis.Password)
			format := opts.output
			if format == formatTable {
				format = formatYAML
			}
			return writeDoc(cmd.OutOrStdout(), format, cfg)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
