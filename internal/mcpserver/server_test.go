package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ideashare/internal/feedback"
	"github.com/starford/ideashare/internal/identity"
	"github.com/starford/ideashare/internal/ideas"
	"github.com/starford/ideashare/internal/ideaservice"
	"github.com/starford/ideashare/internal/limiter"
	"github.com/starford/ideashare/internal/localstore"
	"github.com/starford/ideashare/internal/testutil"
	"github.com/starford/ideashare/internal/votes"
)

func testServer(t *testing.T) (*Server, *ideas.Repository) {
	t.Helper()
	logger := testutil.Logger()
	db := testutil.TestDB(t, testutil.IdeaIndexes...)
	local := localstore.NewMemory()

	ids := identity.NewProvider(local, logger)
	lim := limiter.New(local, ids, logger, limiter.WithLocation(time.UTC))
	repo := ideas.New(db, logger)
	svc := ideaservice.NewService(repo, votes.New(repo, logger), lim, ids, local, logger,
		ideaservice.WithFeedback(feedback.New(db, logger)))
	t.Cleanup(svc.Wait)

	return New(svc), repo
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper, so dispatch to the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "submit_idea":
		result, err = srv.submitIdea(ctx, req)
	case "list_ideas":
		result, err = srv.listIdeas(ctx, req)
	case "vote_idea":
		result, err = srv.voteIdea(ctx, req)
	case "random_unvoted_idea":
		result, err = srv.randomUnvoted(ctx, req)
	case "submission_status":
		result, err = srv.submissionStatus(ctx, req)
	case "submit_feedback":
		result, err = srv.submitFeedback(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSubmitIdea(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "submit_idea", map[string]any{"text": "plant more trees along the river"})
	if r.IsError {
		t.Fatalf("submit error: %s", resultText(r))
	}
	var res ideaservice.SubmitResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.IdeaID == "" || res.Outcome != ideaservice.OutcomeCreated {
		t.Errorf("result = %+v", res)
	}

	r = callTool(t, srv, "submit_idea", map[string]any{"text": "another idea on the same day"})
	if !r.IsError {
		t.Error("second submit should fail")
	}

	var st limiter.Status
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "submission_status", nil))), &st); err != nil {
		t.Fatal(err)
	}
	if st.CanSubmit {
		t.Errorf("status = %+v, want blocked", st)
	}
}

func TestSubmitIdeaRejected(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "submit_idea", map[string]any{"text": "this plan is stupid but cheap"})
	if !r.IsError || !strings.Contains(resultText(r), "try:") {
		t.Errorf("result = %q, want rejection with suggestions", resultText(r))
	}
	r = callTool(t, srv, "submit_idea", map[string]any{})
	if !r.IsError {
		t.Error("missing text should fail")
	}
}

func TestListIdeas(t *testing.T) {
	srv, repo := testServer(t)
	if _, err := repo.Submit(context.Background(), "a seeded idea to list", "someone", "Peru"); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "list_ideas", map[string]any{"filter": "unvoted", "sort": "views"})
	if r.IsError {
		t.Fatalf("list error: %s", resultText(r))
	}
	var page ideaservice.FeedPage
	if err := json.Unmarshal([]byte(resultText(r)), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Cards[0].Text != "a seeded idea to list" {
		t.Errorf("page = %+v", page)
	}

	if r := callTool(t, srv, "list_ideas", map[string]any{"sort": "random"}); !r.IsError {
		t.Error("unknown sort should fail")
	}
}

func TestVoteIdea(t *testing.T) {
	srv, repo := testServer(t)
	id, err := repo.Submit(context.Background(), "a seeded idea to rate", "someone", "Peru")
	if err != nil {
		t.Fatal(err)
	}

	if r := callTool(t, srv, "random_unvoted_idea", nil); !strings.Contains(resultText(r), id) {
		t.Errorf("random = %q, want %s", resultText(r), id)
	}

	r := callTool(t, srv, "vote_idea", map[string]any{"id": id, "stars": 5})
	if r.IsError {
		t.Fatalf("vote error: %s", resultText(r))
	}
	if got := resultText(r); !strings.Contains(got, "5.00 average from 1 votes") {
		t.Errorf("vote result = %q", got)
	}

	if r := callTool(t, srv, "vote_idea", map[string]any{"id": id, "stars": 3}); !r.IsError {
		t.Error("second vote should fail")
	}
	if r := callTool(t, srv, "vote_idea", map[string]any{"id": "missing", "stars": 3}); !r.IsError {
		t.Error("vote on missing idea should fail")
	}
	if r := callTool(t, srv, "random_unvoted_idea", nil); resultText(r) != "no unvoted ideas" {
		t.Errorf("random = %q", resultText(r))
	}
}

func TestSubmitFeedback(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "submit_feedback", map[string]any{"text": "a map of ideas by country"})
	if r.IsError || !strings.HasPrefix(resultText(r), "feedback saved: ") {
		t.Errorf("result = %q", resultText(r))
	}
	if r := callTool(t, srv, "submit_feedback", map[string]any{"text": "  "}); !r.IsError {
		t.Error("blank feedback should fail")
	}
}

func TestRulesResource(t *testing.T) {
	srv, _ := testServer(t)

	contents, err := srv.readRulesResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != rulesURI || !strings.Contains(tc.Text, "ONE idea per calendar day") {
		t.Errorf("contents = %+v", contents)
	}
}
