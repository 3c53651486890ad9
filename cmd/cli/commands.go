package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

var dryRun bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log what would happen without writing anything")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(sportsCmd)
	rootCmd.AddCommand(standingsCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(matchesCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(metricsCmd)

	matchesCmd.Flags().String("status", "", "Filter matches by status (e.g. PENDING)")
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health", nil)
	},
}

var sportsCmd = &cobra.Command{
	Use:   "sports",
	Short: "List the configured sports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/sports", nil)
	},
}

var standingsCmd = &cobra.Command{
	Use:   "standings <sport-id>",
	Short: "Show the ladder standings for a sport",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/standings", url.Values{"sport_id": {args[0]}})
	},
}

var membersCmd = &cobra.Command{
	Use:   "members <sport-id>",
	Short: "List every profile in a sport, deactivated included",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/members", url.Values{"sport_id": {args[0]}})
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches <sport-id>",
	Short: "List matches for a sport, optionally filtered by status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{"sport_id": {args[0]}}
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			params.Set("status", strings.ToUpper(status))
		}
		return performGetRequest("/matches", params)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Trigger the maintenance sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/sweep", nil, false)
	},
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute <sport-id>",
	Short: "Rebuild a sport's ratings from the processed match log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/admin/recompute", url.Values{"sport_id": {args[0]}}, true)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics", nil)
	},
}

func buildURL(endpoint string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if dryRun {
		params.Set("dry_run", "true")
	}
	u := host + endpoint
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

func performGetRequest(endpoint string, params url.Values) error {
	u := buildURL(endpoint, params)
	fmt.Printf("Making request to %s\n", u)

	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func performPostRequest(endpoint string, params url.Values, admin bool) error {
	u := buildURL(endpoint, params)
	fmt.Printf("Making request to %s\n", u)

	req, err := http.NewRequest(http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if admin {
		req.Header.Set("X-Admin-Token", adminToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(body))

	return nil
}
