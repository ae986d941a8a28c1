package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pricecache/internal/config"
)

func newInitDBCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the live and history stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			if err := a.Close(); err != nil {
				return err
			}
			cfg := a.Config.Storage
			fmt.Fprintf(cmd.OutOrStdout(), "initialised live=%s history=%s dir=%s\n",
				cfg.LiveBackend, cfg.HistoryBackend, cfg.Dir)
			return nil
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	var (
		out   string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to overwrite", out)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Default().Save(out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", out)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&out, "output", "o", "config.yaml", "destination path")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config after env overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			b, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
