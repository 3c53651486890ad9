package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host       string
	adminToken string
)

var rootCmd = &cobra.Command{
	Use:   "ladder-cli",
	Short: "A CLI to interact with the refactored-ladder server",
	Long: `A command-line interface for making requests to the various endpoints
of the refactored-ladder application.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "The host address of the server")
	rootCmd.PersistentFlags().StringVar(&adminToken, "admin-token", os.Getenv("ADMIN_TOKEN"), "Admin token for the /admin endpoints")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your command '%s'", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
