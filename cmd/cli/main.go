package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const version = "1.0.0"

var (
	serverAddr string
	collection string
	timeout    time.Duration
	httpClient *http.Client
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "vectorlite REST server address")
	flag.StringVar(&collection, "collection", "default", "collection to operate on")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	command := os.Args[1]

	switch command {
	case "create-collection":
		handleCreateCollection(os.Args[2:])
	case "list-collections":
		handleListCollections(os.Args[2:])
	case "drop-collection":
		handleDropCollection(os.Args[2:])
	case "insert":
		handleInsert(os.Args[2:])
	case "search":
		handleSearch(os.Args[2:])
	case "get":
		handleGet(os.Args[2:])
	case "delete":
		handleDelete(os.Args[2:])
	case "stats":
		handleStats(os.Args[2:])
	case "health":
		handleHealth(os.Args[2:])
	case "version":
		fmt.Printf("vectorlite-cli version %s\n", version)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showUsage()
		os.Exit(1)
	}
}

func client() *http.Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return httpClient
}

func handleCreateCollection(args []string) {
	fs := flag.NewFlagSet("create-collection", flag.ExitOnError)
	var (
		dim    = fs.Int("dim", 0, "vector dimensions (required)")
		metric = fs.String("metric", "cosine", "distance metric: cosine, l2, dot")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "vectorlite REST server address")
	fs.StringVar(&collection, "collection", collection, "collection name")
	fs.Parse(args)

	if *dim <= 0 {
		fmt.Println("Error: -dim is required and must be positive")
		fs.Usage()
		os.Exit(1)
	}

	body := map[string]interface{}{
		"name":   collection,
		"dim":    *dim,
		"metric": *metric,
	}
	var resp map[string]interface{}
	if err := doRequest(http.MethodPost, "/v1/collections", body, &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Created collection %q (dim=%d, metric=%s)\n", collection, *dim, *metric)
}

func handleListCollections(args []string) {
	fs := flag.NewFlagSet("list-collections", flag.ExitOnError)
	fs.StringVar(&serverAddr, "server", serverAddr, "vectorlite REST server address")
	fs.Parse(args)

	var resp struct {
		Collections []string `json:"collections"`
	}
	if err := doRequest(http.MethodGet, "/v1/collections", nil, &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(resp.Collections) == 0 {
		fmt.Println("No collections")
		return
	}
	for _, c := range resp.Collections {
		fmt.Println(c)
	}
}

func handleDropCollection(args []string) {
	fs := flag.NewFlagSet("drop-collection", flag.ExitOnError)
	fs.StringVar(&serverAddr, "server", serverAddr, "vectorlite REST server address")
	fs.StringVar(&collection, "collection", collection, "collection name")
	fs.Parse(args)

	path := fmt.Sprintf("/v1/collections/%s", collection)
	if err := doRequest(http.MethodDelete, path, nil, nil); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Dropped collection %q\n", collection)
}

func handleInsert(args []string) {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	var (
		id          = fs.String("id", "", "vector ID (required)")
		vectorStr   = fs.String("vector", "", "vector as JSON array (required)")
		metadataStr = fs.String("metadata", "{}", "metadata as JSON object")
		upsert      = fs.Bool("upsert", false, "overwrite if ID already exists")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "vectorlite REST server address")
	fs.StringVar(&collection, "collection", collection, "collection name")
	fs.Parse(args)

	if *id == "" || *vectorStr == "" {
		fmt.Println("Error: -id and -vector are required")
		fs.Usage()
		os.Exit(1)
	}

	var vector []float32
	if err := json.Unmarshal([]byte(*vectorStr), &vector); err != nil {
		fmt.Printf("Error parsing vector: %v\n", err)
		os.Exit(1)
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(*metadataStr), &metadata); err != nil {
		fmt.Printf("Error parsing metadata: %v\n", err)
		os.Exit(1)
	}

	body := map[string]interface{}{
		"id":       *id,
		"vector":   vector,
		"metadata": metadata,
		"upsert":   *upsert,
	}
	path := fmt.Sprintf("/v1/collections/%s/vectors", collection)
	if err := doRequest(http.MethodPost, path, body, nil); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Inserted vector with ID: %s\n", *id)
}

func handleGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	var id = fs.String("id", "", "ID of vector to fetch (required)")
	fs.StringVar(&serverAddr, "server", serverAddr, "vectorlite REST server address")
	fs.StringVar(&collection, "collection", collection, "collection name")
	fs.Parse(args)

	if *id == "" {
		fmt.Println("Error: -id is required")
		fs.Usage()
		os.Exit(1)
	}

	path := fmt.Sprintf("/v1/collections/%s/vectors/%s", collection, *id)
	var resp map[string]interface{}
	if err := doRequest(http.MethodGet, path, nil, &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printJSON(resp)
}

func handleDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	var id = fs.String("id", "", "ID of vector to delete (required)")
	fs.StringVar(&serverAddr, "server", serverAddr, "vectorlite REST server address")
	fs.StringVar(&collection, "collection", collection, "collection name")
	fs.Parse(args)

	if *id == "" {
		fmt.Println("Error: -id is required")
		fs.Usage()
		os.Exit(1)
	}

	path := fmt.Sprintf("/v1/collections/%s/vectors/%s", collection, *id)
	if err := doRequest(http.MethodDelete, path, nil, nil); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Deleted vector %s\n", *id)
}

func handleSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	var (
		queryVectorStr = fs.String("query", "", "query vector as JSON array (required)")
		k              = fs.Int("k", 10, "number of results to return")
		efSearch       = fs.Int("ef", 50, "HNSW efSearch parameter")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "vectorlite REST server address")
	fs.StringVar(&collection, "collection", collection, "collection name")
	fs.Parse(args)

	if *queryVectorStr == "" {
		fmt.Println("Error: -query is required")
		fs.Usage()
		os.Exit(1)
	}

	var queryVector []float32
	if err := json.Unmarshal([]byte(*queryVectorStr), &queryVector); err != nil {
		fmt.Printf("Error parsing query vector: %v\n", err)
		os.Exit(1)
	}

	body := map[string]interface{}{
		"vector":    queryVector,
		"k":         *k,
		"ef_search": *efSearch,
	}
	var resp struct {
		Results []struct {
			ID       string                 `json:"id"`
			Score    float32                `json:"score"`
			Metadata map[string]interface{} `json:"metadata,omitempty"`
		} `json:"results"`
		TookMs float64 `json:"took_ms"`
	}
	path := fmt.Sprintf("/v1/collections/%s/search", collection)
	if err := doRequest(http.MethodPost, path, body, &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d results (search took %.2fms)\n\n", len(resp.Results), resp.TookMs)
	for i, r := range resp.Results {
		fmt.Printf("Result %d:\n", i+1)
		fmt.Printf("  ID:    %s\n", r.ID)
		fmt.Printf("  Score: %.6f\n", r.Score)
		if len(r.Metadata) > 0 {
			fmt.Println("  Metadata:")
			for k, v := range r.Metadata {
				fmt.Printf("    %s: %v\n", k, v)
			}
		}
		fmt.Println()
	}
}

func handleStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.StringVar(&serverAddr, "server", serverAddr, "vectorlite REST server address")
	fs.StringVar(&collection, "collection", "", "collection to report on (default: all)")
	fs.Parse(args)

	path := "/v1/stats"
	if collection != "" {
		path = fmt.Sprintf("/v1/stats/%s", collection)
	}
	var resp map[string]interface{}
	if err := doRequest(http.MethodGet, path, nil, &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("=== Database Statistics ===")
	printJSON(resp)
}

func handleHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	fs.StringVar(&serverAddr, "server", serverAddr, "vectorlite REST server address")
	fs.Parse(args)

	var resp struct {
		Status string `json:"status"`
	}
	if err := doRequest(http.MethodGet, "/v1/health", nil, &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Status: %s\n", resp.Status)
	if resp.Status != "ok" {
		os.Exit(1)
	}
}

// doRequest issues an HTTP request against the configured server and
// decodes the JSON response body into out, if non-nil.
func doRequest(method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverAddr, "/")+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client().Do(req)
	if err != nil {
		return fmt.Errorf("connecting to server at %s: %w", serverAddr, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, errBody.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func printJSON(v interface{}) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(buf))
}

func showUsage() {
	fmt.Println(`vectorlite CLI - client for a vectorlite REST server

Usage:
  vectorlite-cli <command> [options]

Commands:
  create-collection  Create a new collection
  list-collections   List all collections
  drop-collection    Delete a collection and its data
  insert             Insert (or upsert) a vector with metadata
  get                Fetch a vector by ID
  search             Search for similar vectors
  delete             Delete a vector by ID
  stats              Get database or collection statistics
  health             Check server health
  version            Show version
  help               Show this help message

Common Options (given after the command, where it applies):
  -server ADDRESS      REST server address (default: http://localhost:8080)
  -collection NAME     Collection to use (default: default)

Requests time out after 30s.

Examples:

  # Create a collection
  vectorlite-cli create-collection -collection docs -dim 3 -metric cosine

  # Insert a vector
  vectorlite-cli insert -collection docs \
    -id doc-1 \
    -vector '[0.1, 0.2, 0.3]' \
    -metadata '{"title": "Document 1", "category": "tech"}'

  # Search for similar vectors
  vectorlite-cli search -collection docs \
    -query '[0.15, 0.25, 0.35]' \
    -k 10 \
    -ef 50

  # Delete a vector
  vectorlite-cli delete -collection docs -id doc-1

  # Get database statistics
  vectorlite-cli stats

  # Check server health
  vectorlite-cli health`)
}
