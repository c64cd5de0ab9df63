// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes ideashare tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/feed"
	"github.com/starford/ideashare/internal/ideaservice"
)

const rulesURI = "ideashare://rules"

// Server wraps the MCP server with ideashare tools.
type Server struct {
	mcp *server.MCPServer
	svc *ideaservice.Service
}

// New creates a new MCP server with all ideashare tools registered.
func New(svc *ideaservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"ideashare",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("submit_idea",
		mcp.WithDescription("Submit today's idea. Only one idea per day is accepted. "+
			"Read the ideashare://rules resource first to avoid rejections."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Idea text, 10 to 600 characters")),
	), s.submitIdea)

	s.mcp.AddTool(mcp.NewTool("list_ideas",
		mcp.WithDescription("List the visible window of the idea feed."),
		mcp.WithString("filter", mcp.Description("all, voted or unvoted (default all)")),
		mcp.WithString("sort", mcp.Description("date, stars or views (default date)")),
		mcp.WithNumber("offset", mcp.Description("Scroll offset in pixels")),
		mcp.WithNumber("limit", mcp.Description("How many ideas to load")),
	), s.listIdeas)

	s.mcp.AddTool(mcp.NewTool("vote_idea",
		mcp.WithDescription("Rate an idea with 1 to 5 stars. Each identity votes once per idea."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Idea ID")),
		mcp.WithNumber("stars", mcp.Required(), mcp.Description("Star rating from 1 to 5")),
	), s.voteIdea)

	s.mcp.AddTool(mcp.NewTool("random_unvoted_idea",
		mcp.WithDescription("Pick a random idea that nobody has voted on yet."),
	), s.randomUnvoted)

	s.mcp.AddTool(mcp.NewTool("submission_status",
		mcp.WithDescription("Report whether the current identity can submit an idea today."),
	), s.submissionStatus)

	s.mcp.AddTool(mcp.NewTool("submit_feedback",
		mcp.WithDescription("Send free-text feedback about ideashare itself."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Feedback text, up to 2000 characters")),
	), s.submitFeedback)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Submission Rules",
			mcp.WithResourceDescription("What makes an idea, vote or feed query acceptable."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) submitIdea(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Submit(ctx, text)
	if err != nil {
		msg := err.Error()
		if res.Reason != "" {
			msg = res.Reason
		}
		if len(res.Suggestions) > 0 {
			msg = fmt.Sprintf("%s (try: %v)", msg, res.Suggestions)
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(res), nil
}

func (s *Server) listIdeas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, ok := feed.ParseFilter(req.GetString("filter", ""))
	if !ok && req.GetString("filter", "") != "" {
		return mcp.NewToolResultError("unknown filter"), nil
	}
	sortKey, ok := feed.ParseSortKey(req.GetString("sort", ""))
	if !ok && req.GetString("sort", "") != "" {
		return mcp.NewToolResultError("unknown sort"), nil
	}
	page := s.svc.Feed(ctx, ideaservice.FeedRequest{
		Filter: filter,
		Sort:   sortKey,
		Offset: req.GetInt("offset", 0),
		Limit:  req.GetInt("limit", 0),
	})
	return jsonResult(page), nil
}

func (s *Server) voteIdea(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stars, err := req.RequireInt("stars")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idea, err := s.svc.Vote(ctx, id, stars)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("voted %d on %s: %.2f average from %d votes",
		stars, id, idea.AverageStars, idea.TotalVotes)), nil
}

func (s *Server) randomUnvoted(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idea := s.svc.RandomUnvoted(ctx)
	if idea == nil {
		return mcp.NewToolResultText("no unvoted ideas"), nil
	}
	return jsonResult(map[string]any{
		"id":      idea.ID,
		"text":    idea.Text,
		"country": idea.Country,
	}), nil
}

func (s *Server) submissionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Status()), nil
}

func (s *Server) submitFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.svc.SubmitFeedback(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("feedback saved: %s", id)), nil
}

func (s *Server) readRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     SubmissionRules,
		},
	}, nil
}
