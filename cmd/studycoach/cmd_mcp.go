package main

import (
	"github.com/felixgeelhaar/studycoach/internal/app"
	mcpserver "github.com/felixgeelhaar/studycoach/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the study coach tools over MCP (stdio by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			mcpCfg := mcpserver.Config{Progress: a.Progress}
			if a.Quizzes != nil {
				mcpCfg.Quizzes = a.Quizzes
			}
			srv := mcpserver.NewServer(mcpCfg)

			if httpAddr != "" {
				return srv.ServeHTTP(ctx, httpAddr)
			}
			return srv.ServeStdio(ctx)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve over HTTP on this address instead of stdio")
	return cmd
}
