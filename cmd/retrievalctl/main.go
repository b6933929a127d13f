package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL string
	timeout   int

	// Search flags
	stage   string
	history []string

	// Agentic flags
	maxIterations int

	// Prefetch flags
	confidence float64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "retrievalctl",
	Short:   "Query the retrieval orchestrator",
	Version: version,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a single hybrid retrieve+rerank round",
	Long: `Run one hybrid retrieval round: dense and sparse search in parallel,
rank fusion, then cascaded reranking.

Examples:
  # Search with the default conversation stage
  retrievalctl search "what is the refund policy"

  # Search during a specific conversation stage
  retrievalctl search "pricing tiers" --stage discovery`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var agenticCmd = &cobra.Command{
	Use:   "agentic <query>",
	Short: "Run the iterative retrieval loop",
	Long: `Run agentic retrieval: retrieve, judge sufficiency, rewrite the query
and retry until the evidence is sufficient or the iteration cap is hit.

Examples:
  # Full loop with server defaults
  retrievalctl agentic "how do enterprise discounts interact with annual billing"

  # Cap iterations and supply conversation history
  retrievalctl agentic "and for existing customers?" \
    --max-iterations 2 \
    --history "user: tell me about discounts" \
    --history "agent: we offer volume and annual discounts"`,
	Args: cobra.ExactArgs(1),
	RunE: runAgentic,
}

var prefetchCmd = &cobra.Command{
	Use:   "prefetch <partial>",
	Short: "Trigger speculative retrieval for a partial transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrefetch,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server liveness",
	RunE:  runHealth,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9020", "orchestrator base URL")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 30, "request timeout in seconds")

	searchCmd.Flags().StringVar(&stage, "stage", "", "conversation stage (greeting, discovery, presentation, objection_handling, closing)")

	agenticCmd.Flags().StringVar(&stage, "stage", "", "conversation stage")
	agenticCmd.Flags().StringArrayVar(&history, "history", nil, "conversation history turn (repeatable)")
	agenticCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "cap retrieval rounds (0 uses the server default)")

	prefetchCmd.Flags().StringVar(&stage, "stage", "", "conversation stage")
	prefetchCmd.Flags().Float64Var(&confidence, "confidence", 1.0, "transcription confidence in [0,1]")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(agenticCmd)
	rootCmd.AddCommand(prefetchCmd)
	rootCmd.AddCommand(healthCmd)
}

type documentDTO struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	payload := map[string]any{"query": args[0]}
	if stage != "" {
		payload["stage"] = stage
	}

	var resp struct {
		Documents []documentDTO `json:"documents"`
		Partial   bool          `json:"partial"`
	}
	if err := post("/v1/retrieve", payload, &resp); err != nil {
		return err
	}

	if resp.Partial {
		fmt.Println("warning: partial results (a search source was unavailable)")
	}
	printDocuments(resp.Documents)
	return nil
}

func runAgentic(cmd *cobra.Command, args []string) error {
	payload := map[string]any{"query": args[0]}
	if stage != "" {
		payload["stage"] = stage
	}
	if len(history) > 0 {
		payload["history"] = history
	}
	if maxIterations > 0 {
		payload["max_iterations"] = maxIterations
	}

	var resp struct {
		Documents  []documentDTO `json:"documents"`
		Iterations int           `json:"iterations"`
		Rewritten  bool          `json:"rewritten"`
		Reason     string        `json:"reason"`
		Partial    bool          `json:"partial"`
	}
	if err := post("/v1/retrieve/agentic", payload, &resp); err != nil {
		return err
	}

	fmt.Printf("iterations: %d  rewritten: %t  reason: %s\n", resp.Iterations, resp.Rewritten, resp.Reason)
	if resp.Partial {
		fmt.Println("warning: partial results (a search source was unavailable)")
	}
	printDocuments(resp.Documents)
	return nil
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	payload := map[string]any{
		"partial":    args[0],
		"confidence": confidence,
	}
	if stage != "" {
		payload["stage"] = stage
	}
	if err := post("/v1/prefetch", payload, nil); err != nil {
		return err
	}
	fmt.Println("prefetch accepted")
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: time.Duration(timeout) * time.Second}
	resp, err := client.Get(serverURL + "/v1/health")
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	fmt.Println("ok")
	return nil
}

func post(path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	client := &http.Client{Timeout: time.Duration(timeout) * time.Second}
	resp, err := client.Post(serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request %s: status %d: %s", path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printDocuments(docs []documentDTO) {
	if len(docs) == 0 {
		fmt.Println("no documents")
		return
	}
	for i, d := range docs {
		text := d.Text
		if len(text) > 120 {
			text = text[:117] + "..."
		}
		fmt.Printf("%2d. [%.4f] %s  %s\n", i+1, d.Score, d.ID, text)
	}
}
