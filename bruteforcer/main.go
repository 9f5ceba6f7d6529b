package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

type RunOutput struct {
	Code     string            `json:"code"`
	SVG      map[string]string `json:"svg"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Tracks   int               `json:"tracks"`
	Segments int               `json:"segments"`
	Drawn    int               `json:"drawn"`
}

type RunResponse struct {
	RunID     string     `json:"run_id"`
	SessionID string     `json:"session_id"`
	Result    *RunOutput `json:"result"`
}

type SessionResponse struct {
	ID       string `json:"id"`
	PresetID string `json:"preset_id"`
	Script   string `json:"script"`
	Busy     bool   `json:"busy"`
	Crashed  bool   `json:"crashed"`
	Runs     int    `json:"runs"`
}

// RunError is a non-2xx answer from a run endpoint
type RunError struct {
	Status  int
	Kind    string `json:"kind"`
	Message string `json:"error"`
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) CreateSession(presetID string) (*SessionResponse, error) {
	var reqBody []byte
	var err error

	if presetID != "" {
		reqBody, err = json.Marshal(map[string]string{"preset_id": presetID})
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	resp, err := c.client.Post(c.baseURL+"/api/sessions", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create session failed: %s - %s", resp.Status, string(body))
	}

	var session SessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}

	c.sessionID = session.ID
	return &session, nil
}

func (c *Client) GetSession() (*SessionResponse, error) {
	url := fmt.Sprintf("%s/api/sessions/%s", c.baseURL, c.sessionID)
	resp, err := c.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get session failed: %s", resp.Status)
	}

	var session SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &session, nil
}

// Run submits a script, waiting out rate limiting. Failures come back as
// *RunError.
func (c *Client) Run(script string) (*RunResponse, error) {
	body, err := json.Marshal(map[string]string{"script": script})
	if err != nil {
		return nil, fmt.Errorf("marshal run: %w", err)
	}

	url := fmt.Sprintf("%s/api/sessions/%s/run", c.baseURL, c.sessionID)
	var resp *http.Response
	for retry := 0; ; retry++ {
		resp, err = c.client.Post(url, "application/json", bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("run: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests || retry == 5 {
			break
		}
		resp.Body.Close()
		time.Sleep(time.Duration(retry+1) * 500 * time.Millisecond)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		runErr := &RunError{Status: resp.StatusCode}
		json.NewDecoder(resp.Body).Decode(runErr)
		return nil, runErr
	}

	var run RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, fmt.Errorf("parse run response: %w", err)
	}
	return &run, nil
}

func (c *Client) Restart() error {
	url := fmt.Sprintf("%s/api/sessions/%s/restart", c.baseURL, c.sessionID)
	resp, err := c.client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("restart failed: %s", resp.Status)
	}
	return nil
}

// outcome maps a run answer onto the labels probes expect
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if runErr, ok := err.(*RunError); ok {
		return runErr.Kind
	}
	return "transport"
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Turtle server URL")
	presetID := flag.String("preset", "", "Preset to create the session from")
	continueSession := flag.String("continue", "", "Reuse an existing session by ID")
	maxAttempts := flag.Int("max-attempts", 200, "Number of probes to run")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Seed for generated scripts")
	verbose := flag.Bool("v", false, "Verbose output")
	delayMs := flag.Int("delay", 0, "Delay between probes in milliseconds (0 = no delay)")
	flag.Parse()

	log.Printf("Connecting to turtle server at %s", *serverURL)
	client := NewClient(*serverURL)

	// Check for saved session ID
	sessionFile := ".session"
	savedSessionID := *continueSession
	if savedSessionID == "" {
		if data, err := os.ReadFile(sessionFile); err == nil {
			savedSessionID = string(bytes.TrimSpace(data))
		}
	}

	if savedSessionID != "" {
		client.sessionID = savedSessionID
		if _, err := client.GetSession(); err != nil {
			log.Printf("⚠️  Failed to resume session %s (may be expired): %v", savedSessionID, err)
			savedSessionID = ""
		} else {
			log.Printf("🔄 Resuming session: %s", client.sessionID)
		}
	}

	if savedSessionID == "" {
		session, err := client.CreateSession(*presetID)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		log.Printf("✨ Session created: %s (preset %s)", session.ID, session.PresetID)

		if err := os.WriteFile(sessionFile, []byte(client.sessionID), 0644); err != nil {
			log.Printf("Warning: Failed to save session ID: %v", err)
		}
	}

	strategy := NewSystematicStrategy(*seed)
	log.Printf("📊 Systematic probes: %d fixed, then generated scripts (seed %d)", strategy.Fixed(), *seed)

	failures := 0
	for attempt := 1; attempt <= *maxAttempts; attempt++ {
		probe := strategy.Next()

		var problems []string
		if probe.Supersede {
			problems = runSupersede(client, probe)
		} else {
			run, err := client.Run(probe.Script)
			problems = probe.Check(run, err)
		}

		if len(problems) > 0 {
			failures++
			log.Printf("❌ Probe %d (%s):", attempt, probe.Name)
			for _, p := range problems {
				log.Printf("   %s", p)
			}
			if *verbose {
				log.Printf("   script: %s", probe.Script)
			}
		} else if *verbose {
			log.Printf("✅ Probe %d (%s)", attempt, probe.Name)
		}

		// A crashed runner would fail every later probe
		if session, err := client.GetSession(); err == nil && session.Crashed {
			log.Printf("⚠️  Runner crashed after probe %d, restarting", attempt)
			if err := client.Restart(); err != nil {
				log.Fatalf("Restart failed: %v", err)
			}
		}

		if *delayMs > 0 {
			time.Sleep(time.Duration(*delayMs) * time.Millisecond)
		}
	}

	log.Printf("\nSession: %s", client.sessionID)
	if failures > 0 {
		log.Printf("❌ %d/%d probes misbehaved", failures, *maxAttempts)
		os.Exit(1)
	}
	log.Printf("🎉 All %d probes behaved", *maxAttempts)
}

// runSupersede starts an endless script and replaces it with a quick one.
// The first run must report cancelled and the second must succeed.
func runSupersede(client *Client, probe Probe) []string {
	var wg sync.WaitGroup
	var firstErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = client.Run("while (true) {}")
	}()

	// Give the endless run time to start
	time.Sleep(200 * time.Millisecond)
	run, err := client.Run(probe.Script)
	wg.Wait()

	problems := probe.Check(run, err)
	if got := outcome(firstErr); got != "cancelled" {
		problems = append(problems, fmt.Sprintf("superseded run ended %q, want cancelled", got))
	}
	return problems
}
