// sessionctl is an operator CLI for inspecting and repairing session
// state through the service's HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	serviceURL string
	tenantID   int64
	identity   string
)

func main() {
	root := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Operate on conversational session state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serviceURL, "service-url", "http://localhost:8080", "session service base URL")
	root.PersistentFlags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	root.PersistentFlags().StringVar(&identity, "identity", "", "client phone or synthetic identity")

	root.AddCommand(
		contextCmd(),
		dialogCmd(),
		messagesCmd(),
		preferencesCmd(),
		processingCmd(),
		healthCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func client() *resty.Client {
	return resty.New().SetBaseURL(serviceURL).SetTimeout(10 * time.Second)
}

func sessionPath(suffix string) string {
	return fmt.Sprintf("/v1/tenants/%d/sessions/%s/%s", tenantID, identity, suffix)
}

func requireSession() error {
	if tenantID == 0 || identity == "" {
		return fmt.Errorf("--tenant and --identity are required")
	}
	return nil
}

func printResponse(resp *resty.Response) error {
	if resp.IsError() {
		return fmt.Errorf("service returned %s: %s", resp.Status(), resp.String())
	}
	var pretty json.RawMessage = resp.Body()
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(resp.String())
		return nil
	}
	fmt.Println(string(out))
	return nil
}

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show the aggregated session context",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(); err != nil {
				return err
			}
			resp, err := client().R().Get(sessionPath("context"))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate",
		Short: "Drop the cached aggregated context",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(); err != nil {
				return err
			}
			resp, err := client().R().Delete(sessionPath("context/cache"))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	})
	return cmd
}

func dialogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dialog",
		Short: "Manage the active dialog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the active dialog state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(); err != nil {
				return err
			}
			resp, err := client().R().Delete(sessionPath("dialog"))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	})

	patch := &cobra.Command{
		Use:   "patch <json>",
		Short: "Apply a partial dialog update (raw JSON body)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(); err != nil {
				return err
			}
			if !json.Valid([]byte(args[0])) {
				return fmt.Errorf("argument is not valid JSON")
			}
			resp, err := client().R().
				SetHeader("Content-Type", "application/json").
				SetBody([]byte(args[0])).
				Patch(sessionPath("dialog"))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	cmd.AddCommand(patch)
	return cmd
}

func messagesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show the recent message log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(); err != nil {
				return err
			}
			req := client().R()
			if limit > 0 {
				req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
			}
			resp, err := req.Get(sessionPath("messages"))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of messages (0 = all retained)")
	return cmd
}

func preferencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preferences",
		Short: "Show accumulated client preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(); err != nil {
				return err
			}
			resp, err := client().R().Get(sessionPath("preferences"))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
}

func processingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processing",
		Short: "Show the processing flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(); err != nil {
				return err
			}
			resp, err := client().R().Get(sessionPath("processing"))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear a stuck processing flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(); err != nil {
				return err
			}
			resp, err := client().R().Delete(sessionPath("processing"))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	})
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run a deep health check against the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().R().Get("/v1/health")
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
}
