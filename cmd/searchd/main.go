// searchd is a stand-in search engine for local development. It answers
// the same /search and /stats endpoints as the real vector index, with
// deterministic fake results.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"strings"

	"github.com/uniclass/search-gateway/internal/models"
)

var tables = []string{"Pr", "Ss", "EF", "Ac"}

func main() {
	port := flag.String("port", "9000", "port to listen on")
	flag.Parse()

	http.HandleFunc("/search", searchHandler)
	http.HandleFunc("/stats", statsHandler)

	log.Printf("Stub search engine listening on port %s", *port)
	if err := http.ListenAndServe(":"+*port, nil); err != nil {
		log.Fatal("Server failed:", err)
	}
}

func searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	results := make([]models.SearchResult, 0, req.TopK)
	for i := 0; i < req.TopK; i++ {
		results = append(results, fakeResult(req.Query, i))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": results})
}

func statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total_items":   14628,
		"embedding_dim": 384,
		"tables":        tables,
	})
}

// fakeResult derives a stable pseudo-result from the query text so the
// same query always returns the same payload.
func fakeResult(query string, rank int) models.SearchResult {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d", strings.ToLower(query), rank)
	sum := h.Sum32()

	table := tables[sum%uint32(len(tables))]
	return models.SearchResult{
		Code:       fmt.Sprintf("%s_%02d_%02d_%02d", table, sum%90+10, sum/100%90+10, sum/10000%90+10),
		Title:      fmt.Sprintf("%s (match %d)", capitalize(query), rank+1),
		Table:      table,
		Similarity: 0.95 - float64(rank)*0.03,
	}
}

func capitalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
