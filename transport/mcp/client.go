package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/star-royale/game/engine"
	"github.com/wricardo/star-royale/game/service"
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
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Star Royale",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Star Royale - MCP Interface

This is a thin client that proxies all requests to the REST API server.
It observes a running match; playing happens over the websocket.

GAME OBJECTIVE:
Two teams race to collect a single star. Each pickup scores for the
collector's team; the first team to reach the winning score wins and every
member is paid the prize.

AVAILABLE TOOLS:
- match_state: Phase, score, star position and roster
- list_players: Connected players, optionally for one team
- score: Team scores and the winning threshold
- reward_stats: Payout counters and the wallet balance
- list_configs: Available match configurations
- get_config: Full rules of one configuration
- game_instructions: Rules and the websocket protocol`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "match_state",
		Description: "Get the current match state: phase, score, active star and players",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleMatchState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_players",
		Description: "List connected players with position and team",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"team": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"A", "B"},
					"description": "Only list players on this team (optional)",
				},
			},
		},
	}, c.handleListPlayers)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "score",
		Description: "Get team scores and the score needed to win",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleScore)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reward_stats",
		Description: "Get payout counters, recent payouts and the API wallet balance",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRewardStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available match configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_config",
		Description: "Get the full rules of a match configuration",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_name": map[string]interface{}{
					"type":        "string",
					"description": "Config ID as returned by list_configs",
				},
			},
			Required: []string{"config_name"},
		},
	}, c.handleGetConfig)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the game rules and the websocket protocol",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
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
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"].(string); ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func stringArg(request mcp.CallToolRequest, name string) string {
	args, _ := request.Params.Arguments.(map[string]interface{})
	value, _ := args[name].(string)
	return value
}

// Tool handlers

func (c *Client) handleMatchState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var snap engine.MatchSnapshot
	if err := c.apiCall(ctx, "GET", "/api/match", nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMatchState(&snap)), nil
}

func (c *Client) handleListPlayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/players"
	if team := stringArg(request, "team"); team != "" {
		path += "?team=" + url.QueryEscape(team)
	}

	var players []engine.Player
	if err := c.apiCall(ctx, "GET", path, nil, &players); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPlayers(players)), nil
}

func (c *Client) handleScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var score service.ScoreInfo
	if err := c.apiCall(ctx, "GET", "/api/score", nil, &score); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatScore(&score)), nil
}

func (c *Client) handleRewardStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var info service.RewardInfo
	if err := c.apiCall(ctx, "GET", "/api/rewards", nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRewards(&info)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Configurations:\n\n"
	for _, config := range configs {
		result += fmt.Sprintf("• %s (%s)\n  %s\n  Field: %gx%g, +%d per star, %d to win, prize %g, teams: %s\n\n",
			config.ConfigID, config.Name, config.Description, config.FieldWidth, config.FieldHeight,
			config.PointsPerClaim, config.WinningScore, config.Prize, config.TeamPolicy)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(request, "config_name")
	if name == "" {
		return mcp.NewToolResultError("config_name is required"), nil
	}

	var config engine.MatchConfig
	if err := c.apiCall(ctx, "GET", "/api/configs/"+url.PathEscape(name), nil, &config); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `⭐ Star Royale - Complete Instructions

GAME OBJECTIVE:
Two teams compete for one star. The first player to touch it scores for their
team and a new star appears somewhere else. The first team to reach the
winning score wins the match, and every member of that team is paid the prize.

GAME MECHANICS:
• Teams: Players are assigned to team A or B when they connect
• Movement: Clients report their own position; the server relays it
• Claiming: The first claim on a star wins it, later claims are ignored
• Victory: Reaching the winning score freezes the match for good

CONNECTING:
Open a websocket to /ws. The server identifies you from the X-User-ID header
or the ?user= query parameter.

WEBSOCKET PROTOCOL:
Every frame is {"event": "<name>", "data": {...}}

Send:
• movement  {"x": 120, "y": 80, "rotation": 1.5}
• claim     {"starId": 7}   (starId optional: the star you touched)

Receive:
• rosterSnapshot  {"you": "<your id>", "players": {...}}   on join
• starLocation    {"id": 8, "x": 310, "y": 95}
• scoreUpdate     {"teamA": 20, "teamB": 10}
• playerJoined / playerMoved / playerLeft
• matchOver       {"winner": "A", "prize": 0.01, "score": {...}}

Joining after the match has ended only gets you matchOver.

AVAILABLE TOOLS:
• match_state, list_players, score: watch the match
• reward_stats: see payouts
• list_configs, get_config: inspect the rule sets`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatMatchState(snap *engine.MatchSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Match (%s): %s\n", snap.Config, snap.State.Phase)
	fmt.Fprintf(&b, "Score: A %d - %d B\n", snap.Score.TeamA, snap.Score.TeamB)

	if snap.State.Finished() {
		fmt.Fprintf(&b, "🏆 Team %s won! Prize %g paid to %d players\n", snap.State.Winner, snap.State.Prize, snap.State.Payouts)
	} else if snap.Star != nil {
		fmt.Fprintf(&b, "⭐ Star #%d at (%.0f,%.0f)\n", snap.Star.ID, snap.Star.X, snap.Star.Y)
	}

	b.WriteString("\n")
	b.WriteString(formatPlayers(snap.Players))
	return b.String()
}

func formatPlayers(players []engine.Player) string {
	if len(players) == 0 {
		return "No players connected\n"
	}

	sorted := append([]engine.Player(nil), players...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Team != sorted[j].Team {
			return sorted[i].Team < sorted[j].Team
		}
		return sorted[i].PlayerID < sorted[j].PlayerID
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Players (%d):\n", len(sorted))
	for _, p := range sorted {
		fmt.Fprintf(&b, "- [%s] %s at (%.0f,%.0f) facing %.2f\n", p.Team, p.PlayerID, p.X, p.Y, p.Rotation)
	}
	return b.String()
}

func formatScore(score *service.ScoreInfo) string {
	result := fmt.Sprintf("Team A: %d\nTeam B: %d\nWinning score: %d\n",
		score.Score.TeamA, score.Score.TeamB, score.WinningScore)
	if score.Phase == engine.PhaseFinished {
		result += fmt.Sprintf("Match over, team %s won\n", score.Winner)
	}
	return result
}

func formatRewards(info *service.RewardInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Rewards: %s", info.Mode)
	if info.AppID != "" {
		fmt.Fprintf(&b, " (app %s)", info.AppID)
	}
	fmt.Fprintf(&b, "\nPrize: %g per winner", info.Prize)
	if info.Reason != "" {
		fmt.Fprintf(&b, " (%q)", info.Reason)
	}
	b.WriteString("\n")

	switch {
	case info.WalletBalance != nil:
		fmt.Fprintf(&b, "Wallet balance: %g\n", *info.WalletBalance)
	case info.BalanceError != "":
		fmt.Fprintf(&b, "Wallet balance unavailable: %s\n", info.BalanceError)
	}

	s := info.Stats
	fmt.Fprintf(&b, "Queued: %d, Sent: %d, Failed: %d, Dropped: %d, Pending: %d\n",
		s.Queued, s.Sent, s.Failed, s.Dropped, s.Pending)

	if len(s.Recent) > 0 {
		b.WriteString("\nRecent payouts:\n")
		for _, r := range s.Recent {
			status := "✓"
			if !r.Success {
				status = "✗ " + r.Error
			}
			fmt.Fprintf(&b, "- %s %g to %s after %d attempt(s) %s\n",
				r.Payout.QueuedAt.Format("15:04:05"), r.Payout.Amount, r.Payout.UserID, r.Attempts, status)
		}
	}
	return b.String()
}
