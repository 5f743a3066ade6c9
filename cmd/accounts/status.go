// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/config"
)

// ProbeStatus is the result of one health probe.
type ProbeStatus struct {
	Probe      string `json:"probe"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	metricsAddr string
	jsonOutput  bool
	timeout     time.Duration
}

var probes = []string{"liveness", "readiness"}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running accounts service",
		Long: `Query the liveness and readiness probes on the observability
listener and report whether the service is running and ready.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, &http.Client{Timeout: cfg.timeout})
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "observability listen address of the service")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "per-probe timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig, client *http.Client) error {
	statuses := make([]ProbeStatus, 0, len(probes))
	for _, probe := range probes {
		statuses = append(statuses, queryProbe(cmd.Context(), client, cfg.metricsAddr, probe))
	}

	if cfg.jsonOutput {
		output, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(output)
		return nil
	}
	cmd.Print(formatStatusTable(statuses))
	return nil
}

func queryProbe(ctx context.Context, client *http.Client, addr, probe string) ProbeStatus {
	status := ProbeStatus{Probe: probe}
	if ctx == nil {
		ctx = context.Background()
	}

	url := fmt.Sprintf("http://%s/healthz/%s", addr, probe)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	resp, err := client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	status.StatusCode = resp.StatusCode
	status.Detail = strings.TrimSpace(string(body))
	status.Healthy = resp.StatusCode == http.StatusOK
	return status
}

// formatStatusTable formats the probes as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t------")

	for _, s := range statuses {
		state := "fail"
		if s.Healthy {
			state = "ok"
		}
		code := "-"
		if s.StatusCode != 0 {
			code = fmt.Sprint(s.StatusCode)
		}
		detail := s.Detail
		if s.Error != "" {
			detail = s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Probe, state, code, detail)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the probes as JSON.
func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}
