// Package main - agitator
// Load generator: opens many sessions against hydro-server and spams WebSocket actions.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/stat"

	"github.com/hydroedu/hydrosim/internal/engine"
	"github.com/hydroedu/hydrosim/internal/network"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Crops          []string
}

// Stats tracks performance metrics
type Stats struct {
	SessionsStarted  int64
	MessagesSent     int64
	MessagesReceived int64
	Errors           int64
	Latencies        []float64 // Milliseconds from send to ACTION_RESULT
	mu               sync.Mutex
}

func main() {
	serverURL := flag.String("url", "http://localhost:5000", "hydro-server base URL")
	numClients := flag.Int("clients", 50, "Number of concurrent sessions")
	interval := flag.Duration("interval", 300*time.Millisecond, "Action interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	crops := flag.String("crops", "Mint,Spinach,Cherry Tomato", "Comma separated crops to start")
	flag.Parse()

	config := Config{
		ServerURL:      strings.TrimRight(*serverURL, "/"),
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		Crops:          strings.Split(*crops, ","),
	}

	fmt.Println("=========================================")
	fmt.Println("AGITATOR - hydro-server load test")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.ServerURL)
	fmt.Printf("Clients: %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	// Setup graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]float64, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\nStarting clients...")

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("All %d clients started\n\n", config.NumClients)

	// Progress updates
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sent := atomic.LoadInt64(&stats.MessagesSent)
				recv := atomic.LoadInt64(&stats.MessagesReceived)
				errs := atomic.LoadInt64(&stats.Errors)
				fmt.Printf("Progress: Sent=%d Recv=%d Errors=%d\n", sent, recv, errs)
			}
		}
	}()

	wg.Wait()
	return stats
}

func startSession(ctx context.Context, config Config, cropName string) (string, error) {
	body, _ := json.Marshal(map[string]string{"crop": cropName})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.ServerURL+"/start", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		SessionID string `json:"session_id"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("start failed: %s", out.Error)
	}
	return out.SessionID, nil
}

func restartSession(config Config, sid string) {
	body, _ := json.Marshal(map[string]string{"sid": sid})
	resp, err := http.Post(config.ServerURL+"/restart", "application/json", bytes.NewReader(body))
	if err == nil {
		resp.Body.Close()
	}
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	cropName := config.Crops[clientID%len(config.Crops)]
	sid, err := startSession(ctx, config, cropName)
	if err != nil {
		log.Printf("Client %d: start failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	atomic.AddInt64(&stats.SessionsStarted, 1)
	defer restartSession(config, sid)

	u, err := url.Parse(config.ServerURL)
	if err != nil {
		log.Printf("Client %d: URL parse error: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	u.RawQuery = url.Values{"sid": {sid}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		log.Printf("Client %d: Connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	var (
		pendingMu sync.Mutex
		pending   []time.Time
	)

	// Start receiver goroutine
	go func() {
		for {
			var msg network.ServerMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)

			switch msg.Type {
			case network.MsgActionResult:
				pendingMu.Lock()
				if len(pending) > 0 {
					sent := pending[0]
					pending = pending[1:]
					stats.mu.Lock()
					stats.Latencies = append(stats.Latencies, float64(time.Since(sent))/float64(time.Millisecond))
					stats.mu.Unlock()
				}
				pendingMu.Unlock()
			case network.MsgError:
				// Rejected actions never get an ACTION_RESULT
				pendingMu.Lock()
				if len(pending) > 0 {
					pending = pending[1:]
				}
				pendingMu.Unlock()
				atomic.AddInt64(&stats.Errors, 1)
			}
		}
	}()

	// Send actions at configured interval
	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	actions := engine.Actions()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := network.ClientMessage{Type: network.MsgStatus}
			if rand.IntN(4) > 0 {
				msg = network.ClientMessage{Type: network.MsgAction, ActionID: actions[rand.IntN(len(actions))]}
				pendingMu.Lock()
				pending = append(pending, time.Now())
				pendingMu.Unlock()
			}

			if err := conn.WriteJSON(msg); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			atomic.AddInt64(&stats.MessagesSent, 1)
		}
	}
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Sessions Started:  %d\n", atomic.LoadInt64(&stats.SessionsStarted))
	fmt.Printf("Messages Sent:     %d\n", sent)
	fmt.Printf("Messages Received: %d\n", recv)
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f msg/sec\n", throughput)

	var p50, p95 float64
	stats.mu.Lock()
	latencies := append([]float64(nil), stats.Latencies...)
	stats.mu.Unlock()
	if len(latencies) > 0 {
		sort.Float64s(latencies)
		mean, std := stat.MeanStdDev(latencies, nil)
		p50 = stat.Quantile(0.5, stat.Empirical, latencies, nil)
		p95 = stat.Quantile(0.95, stat.Empirical, latencies, nil)

		fmt.Printf("\nAction latency (ms):\n")
		fmt.Printf("  Min:  %.2f\n", latencies[0])
		fmt.Printf("  Mean: %.2f (std %.2f)\n", mean, std)
		fmt.Printf("  P50:  %.2f\n", p50)
		fmt.Printf("  P95:  %.2f\n", p95)
		fmt.Printf("  Max:  %.2f\n", latencies[len(latencies)-1])
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0:
		fmt.Println("PASSED: System handled the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("WARNING: Some errors detected (rate limiting counts as an error)")
	default:
		fmt.Println("FAILED: High error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"sessions_started":   atomic.LoadInt64(&stats.SessionsStarted),
		"messages_sent":      sent,
		"messages_received":  recv,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"latency_p50_ms":     p50,
		"latency_p95_ms":     p95,
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile("load_test_results.json", jsonData, 0644); err != nil {
		log.Printf("writing results: %v", err)
		return
	}
	fmt.Println("\nResults saved to load_test_results.json")
}
