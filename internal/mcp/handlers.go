package mcp

import (
	"context"
	"errors"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/playbookhq/engine/internal/constants"
	"github.com/playbookhq/engine/internal/models"
)

// registerTools registers the two tools this server exposes.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "playbook_infer_tags",
		Description: "Infer a hierarchical tag set, temperature, and complexity label for a prompt",
	}, s.handleInferTags)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "playbook_reflect",
		Description: "Run the full reflect-and-store pipeline over a session transcript and update the playbook",
	}, s.handleReflect)

	return nil
}

func (s *Server) handleInferTags(ctx context.Context, req *sdk.CallToolRequest, args InferTagsInput) (*sdk.CallToolResult, InferTagsOutput, error) {
	maxTags := args.MaxTags
	if maxTags <= 0 {
		maxTags = constants.DefaultMaxTags
	}

	history := make([]models.TranscriptTurn, 0, len(args.History))
	for _, line := range args.History {
		history = append(history, models.TranscriptTurn{Role: "user", Text: line})
	}

	inference, err := s.client.InferTags(ctx, args.Prompt, history, maxTags)
	if err != nil {
		return nil, InferTagsOutput{}, err
	}

	return nil, InferTagsOutput{
		Tags:        inference.Tags,
		Temperature: inference.Temperature,
		Complexity:  inference.Complexity,
	}, nil
}

func (s *Server) handleReflect(ctx context.Context, req *sdk.CallToolRequest, args ReflectInput) (*sdk.CallToolResult, ReflectOutput, error) {
	if args.SessionID == "" {
		return nil, ReflectOutput{}, errors.New("session_id is required")
	}

	transcript := make([]models.TranscriptTurn, 0, len(args.Transcript))
	for _, turn := range args.Transcript {
		transcript = append(transcript, models.TranscriptTurn{Role: turn.Role, Text: turn.Text})
	}

	summary, err := s.handlers.Reflect(ctx, transcript, args.SessionID)
	if err != nil {
		return nil, ReflectOutput{}, err
	}

	return nil, ReflectOutput{
		NewKPTs:    summary.NewKPTs,
		Deltas:     summary.Deltas,
		Merges:     summary.Merges,
		Promotions: summary.Promotions,
		TotalCount: summary.TotalCount,
		Applied:    true,
	}, nil
}
