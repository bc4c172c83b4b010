package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/kalambet/skillgap/internal/interview"
	"github.com/kalambet/skillgap/internal/pipeline"
	"github.com/kalambet/skillgap/internal/similarity"
	"github.com/kalambet/skillgap/internal/tables"
)

// MCPScorer explains a similarity score.
type MCPScorer interface {
	Explain(ctx context.Context, a, b string) similarity.Match
}

// MCPCategorizer assigns a requirement category.
type MCPCategorizer interface {
	Categorize(text string) string
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Analyzer    Analyzer
	Scorer      MCPScorer
	Categorizer MCPCategorizer
	Coach       InterviewCoach
	Tables      *tables.Tables
	Version     string
}

// NewMCPServer creates an MCP server with the skillgap tools and resources.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"skillgap",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("skillgap compares a résumé against a job posting and reports matched, unclear and missing requirements."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("compare_resume",
			mcp.WithDescription("Compare a résumé with a job posting and return per-requirement verdicts and a summary."),
			mcp.WithString("offer_text", mcp.Description("Job posting text"), mcp.Required()),
			mcp.WithString("cv_text", mcp.Description("Résumé text"), mcp.Required()),
			mcp.WithString("job_category", mcp.Description("Optional job domain hint, e.g. developer or marketing")),
		),
		mcpCompare(deps),
	)

	s.AddTool(
		mcp.NewTool("categorize_requirement",
			mcp.WithDescription("Assign a requirement to one of the fixed requirement categories."),
			mcp.WithString("text", mcp.Description("Requirement text"), mcp.Required()),
		),
		mcpCategorize(deps),
	)

	s.AddTool(
		mcp.NewTool("score_similarity",
			mcp.WithDescription("Score how well a résumé item satisfies a requirement, between 0 and 1."),
			mcp.WithString("requirement", mcp.Description("Requirement text"), mcp.Required()),
			mcp.WithString("candidate", mcp.Description("Résumé item text"), mcp.Required()),
		),
		mcpScore(deps),
	)

	if deps.Coach != nil {
		s.AddTool(
			mcp.NewTool("prepare_interview",
				mcp.WithDescription("Generate practice interview questions for a résumé and a job posting."),
				mcp.WithString("offer_text", mcp.Description("Job posting text"), mcp.Required()),
				mcp.WithString("cv_text", mcp.Description("Résumé text"), mcp.Required()),
				mcp.WithString("job_category", mcp.Description("Optional job domain hint")),
				mcp.WithNumber("num_questions", mcp.Description("Number of questions (default 10, max 20)")),
			),
			mcpPrepareInterview(deps),
		)
		s.AddTool(
			mcp.NewTool("review_interview",
				mcp.WithDescription("Score answers to practice interview questions and suggest improvements."),
				mcp.WithArray("questions", mcp.Description("Questions as returned by prepare_interview"), mcp.Required()),
				mcp.WithArray("answers", mcp.Description("One answer per question, in order"), mcp.Required()),
				mcp.WithString("cv_text", mcp.Description("Résumé text")),
				mcp.WithString("job_text", mcp.Description("Job posting text")),
				mcp.WithString("job_category", mcp.Description("Optional job domain hint")),
			),
			mcpReviewInterview(deps),
		)
	}

	s.AddResource(
		mcp.NewResource(
			"skillgap://categories",
			"Requirement Categories",
			mcp.WithResourceDescription("Category profiles with their verdict thresholds"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCategories(deps),
	)

	return s
}

type compareArgs struct {
	Posting    string `mapstructure:"offer_text"`
	Resume     string `mapstructure:"cv_text"`
	DomainHint string `mapstructure:"job_category"`
}

type prepareArgs struct {
	Posting      string `mapstructure:"offer_text"`
	Resume       string `mapstructure:"cv_text"`
	DomainHint   string `mapstructure:"job_category"`
	NumQuestions int    `mapstructure:"num_questions"`
}

type categorizeArgs struct {
	Text string `mapstructure:"text"`
}

type scoreArgs struct {
	Requirement string `mapstructure:"requirement"`
	Candidate   string `mapstructure:"candidate"`
}

func decodeArgs(req mcp.CallToolRequest, out any) error {
	return mapstructure.Decode(req.GetArguments(), out)
}

// decodeJSONArgs decodes arguments into types that carry only json tags.
func decodeJSONArgs(req mcp.CallToolRequest, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: out})
	if err != nil {
		return err
	}
	return dec.Decode(req.GetArguments())
}

// hasArgs reports whether every key was supplied, blank values included.
func hasArgs(req mcp.CallToolRequest, keys ...string) bool {
	args := req.GetArguments()
	for _, k := range keys {
		if _, ok := args[k]; !ok {
			return false
		}
	}
	return true
}

func mcpCompare(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args compareArgs
		if err := decodeArgs(req, &args); err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if !hasArgs(req, "offer_text", "cv_text") {
			return mcpError("offer_text and cv_text are required"), nil
		}

		res, err := deps.Analyzer.Collect(ctx, pipeline.Request{
			Posting:    args.Posting,
			Resume:     args.Resume,
			DomainHint: args.DomainHint,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpPrepareInterview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args prepareArgs
		if err := decodeArgs(req, &args); err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		s, err := deps.Coach.Generate(ctx, interview.GenerateRequest{
			Resume:       args.Resume,
			Posting:      args.Posting,
			DomainHint:   args.DomainHint,
			NumQuestions: args.NumQuestions,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("generating questions failed: %v", err)), nil
		}
		return mcpJSON(s)
	}
}

func mcpReviewInterview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args interview.ReviewRequest
		if err := decodeJSONArgs(req, &args); err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		rev, err := deps.Coach.Review(ctx, args)
		if err != nil {
			return mcpError(fmt.Sprintf("reviewing answers failed: %v", err)), nil
		}
		return mcpJSON(rev)
	}
}

func mcpCategorize(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args categorizeArgs
		if err := decodeArgs(req, &args); err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if strings.TrimSpace(args.Text) == "" {
			return mcpError("text is required"), nil
		}

		name := deps.Categorizer.Categorize(args.Text)
		out := struct {
			Category  string           `json:"category"`
			Threshold tables.Threshold `json:"threshold"`
		}{Category: name, Threshold: deps.Tables.Threshold(name)}
		return mcpJSON(out)
	}
}

func mcpScore(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args scoreArgs
		if err := decodeArgs(req, &args); err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if args.Requirement == "" || args.Candidate == "" {
			return mcpError("requirement and candidate are required"), nil
		}
		return mcpJSON(deps.Scorer.Explain(ctx, args.Requirement, args.Candidate))
	}
}

func mcpResourceCategories(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(categoryList(deps.Tables))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal categories: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
