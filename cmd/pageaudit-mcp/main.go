package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// auditRequest mirrors the audit API request body.
type auditRequest struct {
	URL string `json:"url"`
}

// auditResponse mirrors the audit API response body.
type auditResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Emails   []string `json:"emails"`
		LoadTime float64  `json:"load_time"`
		SSL      bool     `json:"ssl"`
		H1Count  int      `json:"h1_count"`
	} `json:"data"`
	Error string `json:"error"`
}

func main() {
	apiURL := os.Getenv("PAGEAUDIT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3001"
	}
	apiKey := os.Getenv("PAGEAUDIT_API_KEY")

	s := server.NewMCPServer(
		"pageaudit",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	auditPageTool := mcp.NewTool("audit_page",
		mcp.WithDescription("Load a web page in a headless browser and report contact emails, load time, HTTPS validity and the number of <h1> headings."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page to audit. A missing scheme defaults to https://"),
		),
	)
	s.AddTool(auditPageTool, handleAuditPage(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleAuditPage(apiURL, apiKey string) server.ToolHandlerFunc {
	// One audit is bounded by a 30s navigation plus browser overhead.
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		respBody, status, err := apiPost(ctx, client, apiURL, apiKey, "/audit", auditRequest{URL: url})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var auditResp auditResponse
		if err := json.Unmarshal(respBody, &auditResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response (HTTP %d): %v", status, err)), nil
		}

		if !auditResp.Success || auditResp.Data == nil {
			errMsg := auditResp.Error
			if errMsg == "" {
				errMsg = fmt.Sprintf("audit failed (HTTP %d)", status)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatAudit(url, auditResp)), nil
	}
}

func formatAudit(url string, r auditResponse) string {
	d := r.Data
	emails := "none found"
	if len(d.Emails) > 0 {
		emails = strings.Join(d.Emails, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Audit: %s\n\n", url)
	fmt.Fprintf(&b, "Load time: %.2fs\n", d.LoadTime)
	fmt.Fprintf(&b, "SSL: %t\n", d.SSL)
	fmt.Fprintf(&b, "H1 headings: %d\n", d.H1Count)
	fmt.Fprintf(&b, "Emails: %s", emails)
	return b.String()
}

// apiPost sends a POST request to the audit API and returns the response
// body and status code.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(apiURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
