package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/briefly-ai/briefly/config"
	srv "github.com/briefly-ai/briefly/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var migDir string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, cfg, migDir)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./briefly.yaml)")
	serve.Flags().StringVar(&migDir, "migrations", "migrations", "migrations directory (empty to skip)")

	return serve
}
