// Benchmark tool for load-testing the complycal generation pipeline.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -requests 10000
//
// This tool:
//   1. Generates randomized business profiles across every bracket and state
//   2. Sends each profile to POST /calendar concurrently
//   3. Measures latency, throughput, and cache hit rate
//   4. Summarizes the obligation and priority distribution of the results
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Profile mirrors the questionnaire payload accepted by the API.
type Profile struct {
	BusinessType      string `json:"businessType"`
	State             string `json:"state"`
	Industry          string `json:"industry"`
	Turnover          string `json:"turnover"`
	Employees         string `json:"employees"`
	MSMERegistered    bool   `json:"msmeRegistered"`
	OwesPaymentToMSME bool   `json:"owesPaymentToMSME"`
}

type CalendarRequest struct {
	Profile   Profile `json:"profile"`
	Reference string  `json:"reference,omitempty"`
}

type CalendarEntry struct {
	ObligationID string `json:"complianceId"`
	Priority     string `json:"priority"`
}

type CalendarResponse struct {
	ApplicableIDs []string        `json:"applicableCompliances"`
	Entries       []CalendarEntry `json:"entries"`
	Count         int             `json:"count"`
	Cached        bool            `json:"cached"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64
	TotalEntries   int64
	CacheHits      int64

	LatencyMs int64

	mu           sync.Mutex
	byObligation map[string]int64
	byPriority   map[string]int64
	latencies    []int64
}

var businessTypes = []string{"Manufacturing", "Trading", "Service", "Professional"}

var turnoverBrackets = []string{"<20L", "20L-40L", "40L-1Cr", "1Cr-5Cr", "5Cr-10Cr", ">10Cr"}

var employeeBrackets = []string{"<10", "10-19", "20-49", "50-99", "100+"}

var states = []string{
	"Maharashtra", "Karnataka", "Gujarat", "Tamil Nadu", "West Bengal",
	"Delhi", "Uttar Pradesh", "Rajasthan", "Kerala", "Telangana",
	"Punjab", "Haryana", "Bihar", "Goa", "Assam",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "complycal base URL")
	requests := flag.Int("requests", 1000, "Number of calendar requests to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	uniqueProfiles := flag.Int("profiles", 200, "Distinct profiles to cycle through (smaller = more cache hits)")
	seed := flag.Int64("seed", 42, "Random seed for profile generation")
	verbose := flag.Bool("verbose", false, "Print each request result")
	flag.Parse()

	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|         COMPLYCAL BENCHMARK - Calendar Generation             |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("\nURL:       %s\n", *baseURL)
	fmt.Printf("Requests:  %d\n", *requests)
	fmt.Printf("Workers:   %d\n", *workers)
	fmt.Printf("Profiles:  %d distinct\n", *uniqueProfiles)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: complycal not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure complycal is running:")
		fmt.Println("  go run cmd/complycal/main.go")
		os.Exit(1)
	}
	fmt.Println("complycal is healthy")

	rng := rand.New(rand.NewSource(*seed))
	profiles := make([]Profile, *uniqueProfiles)
	for i := range profiles {
		profiles[i] = randomProfile(rng)
	}

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(profiles, *baseURL, *requests, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func randomProfile(rng *rand.Rand) Profile {
	return Profile{
		BusinessType:      businessTypes[rng.Intn(len(businessTypes))],
		State:             states[rng.Intn(len(states))],
		Industry:          "Benchmark",
		Turnover:          turnoverBrackets[rng.Intn(len(turnoverBrackets))],
		Employees:         employeeBrackets[rng.Intn(len(employeeBrackets))],
		MSMERegistered:    rng.Intn(2) == 0,
		OwesPaymentToMSME: rng.Intn(4) == 0,
	}
}

func runBenchmark(profiles []Profile, baseURL string, requests, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{
		byObligation: make(map[string]int64),
		byPriority:   make(map[string]int64),
	}

	work := make(chan Profile, 100)
	var wg sync.WaitGroup

	reference := time.Now().UTC().Format("2006-01-02")

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for p := range work {
				start := time.Now()
				result, err := generateCalendar(client, baseURL, p, reference)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.LatencyMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s/%s -> %v\n", p.BusinessType, p.State, err)
					}
					continue
				}

				atomic.AddInt64(&metrics.TotalEntries, int64(result.Count))
				if result.Cached {
					atomic.AddInt64(&metrics.CacheHits, 1)
				}

				metrics.mu.Lock()
				for _, id := range result.ApplicableIDs {
					metrics.byObligation[id]++
				}
				for _, e := range result.Entries {
					metrics.byPriority[e.Priority]++
				}
				metrics.latencies = append(metrics.latencies, elapsed)
				metrics.mu.Unlock()

				if verbose {
					fmt.Printf("%-13s | %-14s | turnover %-7s | %3d obligations | %4d entries | %3dms | cached=%v\n",
						p.BusinessType,
						p.State,
						p.Turnover,
						len(result.ApplicableIDs),
						result.Count,
						elapsed,
						result.Cached,
					)
				}
			}
		}()
	}

	for i := 0; i < requests; i++ {
		work <- profiles[i%len(profiles)]
	}
	close(work)

	wg.Wait()

	return metrics
}

func generateCalendar(client *http.Client, baseURL string, p Profile, reference string) (*CalendarResponse, error) {
	body, err := json.Marshal(CalendarRequest{Profile: p, Reference: reference})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/calendar", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result CalendarResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n+---------------------------------------------------------------+")
	fmt.Println("|                      BENCHMARK RESULTS                        |")
	fmt.Println("+---------------------------------------------------------------+")

	fmt.Printf("\nREQUESTS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	fmt.Printf("   Cache Hits:       %d (%.1f%%)\n", m.CacheHits, pct(m.CacheHits, m.TotalProcessed))
	fmt.Printf("   Total Entries:    %d\n", m.TotalEntries)

	fmt.Printf("\nOBLIGATION DISTRIBUTION\n")
	ids := make([]string, 0, len(m.byObligation))
	for id := range m.byObligation {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.byObligation[ids[i]] > m.byObligation[ids[j]] })
	for _, id := range ids {
		fmt.Printf("   %-22s %6d (%.1f%%)\n", id, m.byObligation[id], pct(m.byObligation[id], m.TotalProcessed))
	}

	fmt.Printf("\nPRIORITY DISTRIBUTION\n")
	for _, p := range []string{"High", "Medium", "Low"} {
		fmt.Printf("   %-8s %8d (%.1f%%)\n", p, m.byPriority[p], pct(m.byPriority[p], m.TotalEntries))
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.LatencyMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}
	if len(m.latencies) > 0 {
		sort.Slice(m.latencies, func(i, j int) bool { return m.latencies[i] < m.latencies[j] })
		fmt.Printf("   p50 Latency:      %d ms\n", m.latencies[len(m.latencies)/2])
		fmt.Printf("   p99 Latency:      %d ms\n", m.latencies[len(m.latencies)*99/100])
	}

	fmt.Println()
}

func pct(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}
