package main

import (
	"fmt"

	"github.com/jonathan/propoto-agents/internal/server"
	"github.com/spf13/cobra"
)

var tokenClient string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an API client",
	Long:  "Signs an HS256 token for --client using JWT_SECRET. The server accepts it in place of the service key.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jwtCfg, err := cfg.JWT()
		if err != nil {
			return err
		}
		if jwtCfg == nil {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenClient)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenClient, "client", "", "Client identifier stored as the token subject (required)")
	if err := tokenCmd.MarkFlagRequired("client"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(tokenCmd)
}
