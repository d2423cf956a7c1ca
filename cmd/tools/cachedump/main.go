package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/AlfRonDon/neurareport/internal/cache"
)

// cachedump inspects a persisted discovery-cache envelope: entry count,
// per-template batch/selection summary, and the shared request context.
func main() {
	dir := flag.String("dir", "./data/cache", "Cache directory (file backend)")
	full := flag.Bool("full", false, "Print the full decoded envelope as JSON")

	flag.Parse()

	backend, err := cache.NewFileBackend(*dir, 0)
	if err != nil {
		log.Fatalf("Error opening cache directory: %v\n", err)
	}

	data, ok, err := backend.Get(context.Background(), cache.StorageKey)
	if err != nil {
		log.Fatalf("Error reading envelope: %v\n", err)
	}
	if !ok {
		fmt.Printf("No envelope stored under %s in %s\n", cache.StorageKey, *dir)
		return
	}

	var env cache.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Fatalf("Envelope is unparseable (%d bytes): %v\n", len(data), err)
	}

	if *full {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(env); err != nil {
			log.Fatalf("Error encoding envelope: %v\n", err)
		}
		return
	}

	fmt.Printf("Envelope: %d bytes uncompressed, %d entries\n", len(data), len(env.Results))
	if env.TS > 0 {
		fmt.Printf("Written:  %s\n", time.UnixMilli(env.TS).Format(time.RFC3339))
	}

	if env.Meta != nil {
		fmt.Printf("Context:  %s .. %s", env.Meta.StartDate, env.Meta.EndDate)
		if env.Meta.ConnectionName != "" {
			fmt.Printf(" via %s", env.Meta.ConnectionName)
		}
		fmt.Printf(" (%d templates)\n", len(env.Meta.Templates))
	}

	ids := make([]string, 0, len(env.Results))
	for id := range env.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := env.Results[id]
		entry.Rebuild()

		selected := 0
		for _, b := range entry.AllBatches {
			if b.Selected {
				selected++
			}
		}

		fmt.Printf("  %s  %q  batches=%d visible=%d selected=%d rows=%d accessed=%s\n",
			id, entry.Name, len(entry.AllBatches), len(entry.Batches), selected,
			entry.RowsTotal, time.UnixMilli(entry.AccessedAt).Format(time.RFC3339))
	}
}
