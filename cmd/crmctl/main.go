package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// crmctl polls the webhook receiver's cached events so an operator can
// inspect delivery/engagement activity without direct database access.

var httpClient = &http.Client{Timeout: 15 * time.Second}

func baseURL() (string, error) {
	base := strings.TrimRight(os.Getenv("CRM_WEBHOOK_URL"), "/")
	if base == "" {
		return "", fmt.Errorf("CRM_WEBHOOK_URL environment variable is not set")
	}
	return base, nil
}

func makeRequest(method, path string) (map[string]interface{}, error) {
	base, err := baseURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, base+path, nil)
	if err != nil {
		return nil, err
	}
	if key := os.Getenv("CRM_API_KEY"); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection error: %w (is the webhook receiver running?)", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("invalid response (%d): %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode >= 300 {
		if msg, ok := data["error"].(string); ok {
			return nil, fmt.Errorf("error %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("error %d: %s", resp.StatusCode, string(body))
	}
	return data, nil
}

func printJSON(data map[string]interface{}) {
	out, _ := json.MarshalIndent(data, "", "  ")
	fmt.Println(string(out))
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := makeRequest(http.MethodGet, "/")
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Get event summary with breakdown by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := makeRequest(http.MethodGet, "/events/summary")
			if err != nil {
				return err
			}

			fmt.Printf("Total events: %v\n\n", data["total_events"])
			if byType, ok := data["by_type"].(map[string]interface{}); ok && len(byType) > 0 {
				fmt.Println("Breakdown by type:")
				types := make([]string, 0, len(byType))
				for t := range byType {
					types = append(types, t)
				}
				sort.Strings(types)
				for _, t := range types {
					fmt.Printf("  %s: %v\n", t, byType[t])
				}
			} else {
				fmt.Println("No events recorded yet.")
			}
			fmt.Println()
			printJSON(data)
			return nil
		},
	}
}

func eventsCmd() *cobra.Command {
	var sinceID int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Fetch stored events",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/events"
			if sinceID > 0 {
				path += "?since_id=" + strconv.Itoa(sinceID)
			}
			data, err := makeRequest(http.MethodGet, path)
			if err != nil {
				return err
			}
			fmt.Printf("Found %v event(s) (latest_id: %v)\n\n", data["count"], data["latest_id"])
			printJSON(data)
			return nil
		},
	}

	cmd.Flags().IntVar(&sinceID, "since-id", 0, "Only return events with ID greater than this")
	return cmd
}

func searchCmd() *cobra.Command {
	var eventType, providerID string
	var limit int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search events by type or provider message id",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if eventType != "" {
				params.Set("type", eventType)
			}
			if providerID != "" {
				params.Set("provider_id", providerID)
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}

			path := "/events/search"
			if encoded := params.Encode(); encoded != "" {
				path += "?" + encoded
			}
			data, err := makeRequest(http.MethodGet, path)
			if err != nil {
				return err
			}
			fmt.Printf("Found %v matching event(s)\n\n", data["count"])
			printJSON(data)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Filter by event type (delivered, bounced, opened, etc.)")
	cmd.Flags().StringVar(&providerID, "provider-id", "", "Filter by provider message id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max results to return")
	return cmd
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all stored events",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := makeRequest(http.MethodPost, "/events/clear")
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %v event(s)\n", data["deleted"])
			printJSON(data)
			return nil
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "crmctl",
		Short: "Client for the CRM webhook receiver's event cache",
	}

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(clearCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
