package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	serverURL   string
	statusWatch bool
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or a specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job;
--watch then follows the job's progress over a websocket.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Follow job progress live (requires a job-id)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		if statusWatch {
			return fmt.Errorf("--watch requires a job-id")
		}
		return listServerJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}

	jobID := args[0]
	if err := getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID); err != nil {
		return err
	}

	if statusWatch {
		return watchJob(jobID)
	}
	return nil
}

func listServerJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		if config, ok := job["config"].(map[string]interface{}); ok {
			fmt.Printf("  Backend: %s\n", config["backend"])
			fmt.Printf("  x0: %v\n", config["x0"])
		}
		if loss, ok := job["bestLoss"].(float64); ok && loss > 0 {
			fmt.Printf("  Best: β = %v, MSE = %v\n", job["bestX"], job["bestLoss"])
		}
		fmt.Println()
	}

	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	if config, ok := status["config"].(map[string]interface{}); ok {
		fmt.Println("Configuration:")
		fmt.Printf("  x0: %v\n", config["x0"])
		fmt.Printf("  h0: %v\n", config["h0"])
		fmt.Printf("  tol: %v\n", config["tol"])
		fmt.Printf("  beta: %v\n", config["beta"])
		fmt.Printf("  horizon: %v\n", config["horizon"])
		fmt.Printf("  backend: %s\n", config["backend"])
		fmt.Println()
	}

	fmt.Println("Progress:")
	fmt.Printf("  Best β: %v\n", status["bestX"])
	fmt.Printf("  Best MSE: %v\n", status["bestLoss"])
	fmt.Printf("  Outer iteration: %v\n", status["outer"])
	if evals, ok := status["evals"].(float64); ok && evals > 0 {
		fmt.Printf("  Evaluations: %.0f\n", evals)
	}
	if status["converged"] == true {
		fmt.Println("  Converged: yes")
	}

	if seconds, ok := status["elapsed"].(float64); ok {
		elapsed := time.Duration(seconds * float64(time.Second))
		fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	}

	if msg, ok := status["error"].(string); ok && msg != "" {
		fmt.Printf("\nError: %s\n", msg)
	}

	return nil
}

// watchJob follows a job's progress events over the server's websocket
// endpoint until the job reaches a terminal state or the user interrupts.
func watchJob(jobID string) error {
	wsURL, err := websocketURL(serverURL, jobID)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	go func() {
		<-interrupt
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	fmt.Printf("\nWatching job %s (Ctrl-C to stop):\n", jobID)
	for {
		var ev struct {
			State   string  `json:"state"`
			Kind    string  `json:"kind"`
			Outer   int     `json:"outer"`
			Stencil float64 `json:"stencil"`
			X       float64 `json:"x"`
			Loss    float64 `json:"loss"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("websocket read failed: %w", err)
		}

		fmt.Printf("  [%s] outer=%d stencil=%.3g β=%.10f MSE=%.10g\n",
			ev.Kind, ev.Outer, ev.Stencil, ev.X, ev.Loss)

		switch ev.State {
		case "completed", "failed", "cancelled":
			fmt.Printf("Job %s\n", ev.State)
			return nil
		}
	}
}

// websocketURL rewrites the server's HTTP base URL into the ws endpoint
// for one job's progress stream.
func websocketURL(base, jobID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/ws"
	u.RawQuery = url.Values{"job": {jobID}}.Encode()
	return u.String(), nil
}
