package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:3001", "Audit API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per URL for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test URLs covering 5 site types.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

// --- Request / Response types (mirrors models package) ---

type auditRequest struct {
	URL string `json:"url"`
}

type auditResponse struct {
	Success bool         `json:"success"`
	Data    *auditResult `json:"data"`
	Error   string       `json:"error"`
}

type auditResult struct {
	Emails   []string `json:"emails"`
	LoadTime float64  `json:"load_time"`
	SSL      bool     `json:"ssl"`
	H1Count  int      `json:"h1_count"`
}

// --- Benchmark result types ---

type runResult struct {
	Run        int     `json:"run"`
	RoundTrip  int64   `json:"round_trip_ms"`
	LoadTime   float64 `json:"load_time"`
	SSL        bool    `json:"ssl"`
	H1Count    int     `json:"h1_count"`
	EmailCount int     `json:"email_count"`
	HTTPStatus int     `json:"http_status"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
}

type urlAverages struct {
	RoundTrip float64 `json:"round_trip_ms"`
	LoadTime  float64 `json:"load_time"`
	Overhead  float64 `json:"overhead_ms"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Page Audit Benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure the audit server is running (go run ./cmd/pageaudit)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	client := &http.Client{Timeout: 90 * time.Second}
	for _, t := range testURLs {
		fmt.Printf("Auditing [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := auditURL(client, t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %dms  load %.2fs  ssl=%t  h1=%d\n", rr.RoundTrip, rr.LoadTime, rr.SSL, rr.H1Count)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

func auditURL(client *http.Client, url string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(auditRequest{URL: url})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/audit", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.HTTPStatus = resp.StatusCode

	var ar auditResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	rr.RoundTrip = time.Since(start).Milliseconds()

	if !ar.Success || ar.Data == nil {
		rr.Error = ar.Error
		return rr
	}

	rr.Success = true
	rr.LoadTime = ar.Data.LoadTime
	rr.SSL = ar.Data.SSL
	rr.H1Count = ar.Data.H1Count
	rr.EmailCount = len(ar.Data.Emails)
	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var successCount int
	var avg urlAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.RoundTrip += float64(r.RoundTrip)
		avg.LoadTime += r.LoadTime
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.RoundTrip /= n
	avg.LoadTime /= n
	// Browser context setup, extraction and teardown on top of navigation.
	avg.Overhead = avg.RoundTrip - avg.LoadTime*1000
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Round Trip\tAvg Load\tOverhead\tSSL\tH1\n")
	fmt.Fprintf(w, "───\t──────────────\t────────\t────────\t───\t──\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}

		last := lastSuccess(r.Runs)
		fmt.Fprintf(w, "%s\t%dms\t%.2fs\t%dms\t%t\t%d\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.RoundTrip),
			r.Averages.LoadTime,
			int64(r.Averages.Overhead),
			last.SSL,
			last.H1Count,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func lastSuccess(runs []runResult) runResult {
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Success {
			return runs[i]
		}
	}
	return runResult{}
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
