package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gail/internal/agent"
)

type SearchCertificates struct {
	store Certificates
}

func NewSearchCertificates(store Certificates) *SearchCertificates {
	return &SearchCertificates{store: store}
}

func (t *SearchCertificates) Name() string { return "search_certificates" }
func (t *SearchCertificates) Description() string {
	return "Search certificates previously issued for the insured by holder name or description of operations"
}

func (t *SearchCertificates) InputSchema() map[string]any {
	return object(map[string]any{
		"query": str("Keywords to match against holder names and descriptions"),
		"limit": map[string]any{
			"type":        "integer",
			"description": "Maximum results to return (default 10, max 50)",
		},
	}, "query")
}

func (t *SearchCertificates) Execute(ctx context.Context, input json.RawMessage, call agent.Call) (*agent.Result, error) {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}
	if args.Query == "" {
		return nil, errors.New("query is required")
	}
	if args.Limit > 50 {
		args.Limit = 50
	}

	results, err := t.store.Search(ctx, call.PrincipalID, args.Query, args.Limit)
	if err != nil {
		return nil, err
	}
	return &agent.Result{
		Summary: fmt.Sprintf("Found %d certificates matching %q", len(results), args.Query),
		Data:    map[string]any{"certificates": results},
	}, nil
}
