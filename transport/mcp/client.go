package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/stitch-turtle/turtle/script"
	"github.com/wricardo/stitch-turtle/turtle/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Runs may take up to the server's run timeout
			Timeout: 60 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Stitch Turtle",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Stitch Turtle - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Scripts are JavaScript driving a turtle that starts at (250,250) heading down
with the pen down. Each run produces three SVG path documents: combined,
front and back. Front and back split the drawing into alternating stitches.

AVAILABLE TOOLS:
- render_turtle: One-shot render of a script without a session
- create_session: Create a drawing session, optionally from a preset
- run_script: Run a script in a session (aborts any run still in flight)
- get_session: Get session details and the last run summary
- list_sessions: List all active sessions
- cancel_run: Abort the session's in-flight run
- restart_runner: Replace a crashed session runner
- session_svg: Fetch one SVG variant of the session's last result
- run_history: View past runs with outcomes
- list_presets: List example scripts
- turtle_instructions: Full command reference`),
	)

	// Register all tools
	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "render_turtle",
		Description: "Render a turtle script once and return its SVG documents",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"script": map[string]interface{}{
					"type":        "string",
					"description": "JavaScript source using the turtle commands",
				},
				"seed": map[string]interface{}{
					"type":        "string",
					"description": "Seed for Math.random (optional)",
				},
				"variant": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"combined", "front", "back"},
					"description": "Return only this variant (optional)",
				},
			},
			Required: []string{"script"},
		},
	}, c.handleRender)

	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new drawing session with an optional preset script",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"preset_id": map[string]interface{}{
					"type":        "string",
					"description": "Preset to start from (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active drawing sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Script execution
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_script",
		Description: "Run a script in a session. An omitted script reruns the current one",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"script": map[string]interface{}{
					"type":        "string",
					"description": "JavaScript source using the turtle commands",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRun)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "cancel_run",
		Description: "Abort the run currently executing in a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleCancel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "restart_runner",
		Description: "Replace a session's runner after it crashed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleRestart)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "session_svg",
		Description: "Get one SVG variant of the session's last successful run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"variant": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"combined", "front", "back"},
					"description": "Which document to return (default combined)",
				},
				"embed_source": map[string]interface{}{
					"type":        "boolean",
					"description": "Embed the script as a comment in the document",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleSessionSVG)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_history",
		Description: "Get the run history of a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"page": map[string]interface{}{
					"type":        "number",
					"description": "Page number (1-based)",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Runs per page",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRunHistory)

	// Presets and help
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_presets",
		Description: "List the available preset scripts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListPresets)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "turtle_instructions",
		Description: "Get the turtle command reference",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

// apiCall performs a REST request. A *string result receives the raw body.
func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	endpoint := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, endpoint, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			if kind := errResp["kind"]; kind != "" && kind != "internal" {
				return fmt.Errorf("%s (%s)", msg, kind)
			}
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if raw, ok := result.(*string); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		*raw = string(data)
		return nil
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	code, _ := args["script"].(string)
	seed, _ := args["seed"].(string)
	variant, _ := args["variant"].(string)

	var result service.RunResult
	err := c.apiCall("POST", "/api/render", service.RenderRequest{Script: code, Seed: seed}, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRunResult(&result, variant)), nil
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	presetID, _ := args["preset_id"].(string)

	body := map[string]string{}
	if presetID != "" {
		body["preset_id"] = presetID
	}

	var session service.SessionInfo
	err := c.apiCall("POST", "/api/sessions", body, &session)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nPreset: %s\n\nScript:\n%s\n", session.ID, session.PresetID, session.Script)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	err := c.apiCall("GET", "/api/sessions", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (Preset: %s, Runs: %d, Created: %s)\n",
			s.ID, s.PresetID, s.Runs, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s", url.PathEscape(sessionID)), nil, &session)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	code, _ := args["script"].(string)

	var result service.RunResult
	err := c.apiCall("POST", fmt.Sprintf("/api/sessions/%s/run", url.PathEscape(sessionID)), map[string]string{"script": code}, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRunResult(&result, "")), nil
}

func (c *Client) handleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.apiCall("POST", fmt.Sprintf("/api/sessions/%s/cancel", url.PathEscape(sessionID)), nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Cancelled {
		return mcp.NewToolResultText("Run aborted"), nil
	}
	return mcp.NewToolResultText("No run in flight"), nil
}

func (c *Client) handleRestart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Message string `json:"message"`
	}
	err := c.apiCall("POST", fmt.Sprintf("/api/sessions/%s/restart", url.PathEscape(sessionID)), nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message), nil
}

func (c *Client) handleSessionSVG(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	variant, _ := args["variant"].(string)
	embed, _ := args["embed_source"].(bool)

	if variant == "" {
		variant = string(script.VariantCombined)
	}
	path := fmt.Sprintf("/api/sessions/%s/svg/%s", url.PathEscape(sessionID), url.PathEscape(variant))
	if embed {
		path += "?source=1"
	}

	var doc string
	if err := c.apiCall("GET", path, nil, &doc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(doc), nil
}

func (c *Client) handleRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	params := "?"
	if page, ok := args["page"].(float64); ok {
		params += fmt.Sprintf("page=%d&", int(page))
	}
	if limit, ok := args["limit"].(float64); ok {
		params += fmt.Sprintf("limit=%d&", int(limit))
	}

	var history service.HistoryResponse
	err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s/history%s", url.PathEscape(sessionID), params), nil, &history)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var presets []service.PresetInfo
	err := c.apiCall("GET", "/api/presets", nil, &presets)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Presets:\n\n"
	for _, preset := range presets {
		result += fmt.Sprintf("• %s (%s)\n  %s\n  Lines: %d\n\n",
			preset.Name, preset.PresetID, preset.Description, preset.Lines)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `Stitch Turtle - Command Reference

CANVAS:
The turtle starts at (250,250) facing straight down (+y) with the pen down and
a translucent black color. The canvas grows to fit the drawing: its size is
the largest coordinate reached plus a 20 unit margin, never smaller than
500x500.

HEADING:
Headings are fractions of a full turn. 0 is down, 0.25 is right, 0.5 is up and
0.75 is left. turnLeft adds to the heading, turnRight subtracts.

COMMANDS (aliases in brackets):
• forward(d) [f, moveForward] - move d units along the heading
• turnLeft(a) [left, l] - rotate by a turns
• turnRight(a) [right, r] - rotate by -a turns
• turnTo(a) [turn, t] - set the heading to a turns
• penUp() [u] - stop drawing
• penDown() [d] - resume drawing
• color(c) - set the stroke color (a CSS color string) for following lines; starts a new track
• goTo(x, y) [goto, g] - move to an absolute point (draws if the pen is down)
• moveTo(x, y) - jump to an absolute point without drawing
• moveBy(dx, dy) - jump by an offset without drawing
• lineTo(x, y) - draw to an absolute point
• lineBy(dx, dy) - draw by an offset
• Math.seedrandom(seed) - make Math.random deterministic

OUTPUT:
Each color change starts a new track (one <path> element). Three documents
are produced:
• combined - every segment
• front - drawn segments alternate, starting with the first
• back - the remaining segments, with the front ones as jumps
Front and back together give the two faces of a running stitch.

TIPS:
• Non-numeric arguments are ignored, so forward() does nothing
• Loops are fine but runs are time-limited; infinite loops are aborted
• A new run in a session aborts the one still in flight`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nPreset: %s\nCreated: %s\nRuns: %d\n",
		session.ID, session.PresetID,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		session.Runs)
	if session.Busy {
		b.WriteString("Status: running\n")
	}
	if session.Crashed {
		b.WriteString("Status: runner crashed, call restart_runner\n")
	}
	fmt.Fprintf(&b, "\nScript:\n%s\n", session.Script)
	if session.LastResult != nil {
		b.WriteString("\n" + formatSummary(session.LastResult))
	}
	return b.String()
}

func formatSummary(result *script.Result) string {
	return fmt.Sprintf("Canvas: %dx%d\nTracks: %d\nSegments: %d (drawn %d)\nDuration: %s\n",
		result.Width, result.Height, result.Tracks, result.Segments, result.Drawn,
		result.Duration.Round(time.Microsecond))
}

// formatRunResult summarizes a run followed by the requested SVG documents
func formatRunResult(run *service.RunResult, only string) string {
	if run == nil || run.Result == nil {
		return "No result"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", run.RunID)
	b.WriteString(formatSummary(run.Result))

	for _, variant := range script.Variants {
		if only != "" && string(variant) != only {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", variant, run.Result.SVG[variant])
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	result := fmt.Sprintf("Run History (Page %d/%d) - Total: %d\n\n",
		history.Page, history.TotalPages, history.TotalRuns)

	for i, run := range history.Runs {
		num := (history.Page-1)*history.PageSize + i + 1
		status := "✓"
		if run.Outcome != service.OutcomeOK {
			status = "✗ " + run.Outcome
		}
		result += fmt.Sprintf("%d. %s %s [%d segments, %dms]\n",
			num, run.StartedAt.Format("15:04:05"), status, run.Segments, run.DurationMS)
		if run.Error != "" {
			result += "   " + run.Error + "\n"
		}
	}

	return result
}
