package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gail/internal/agent"
	"gail/internal/certificate"
)

type LookupPolicies struct {
	store Certificates
	now   func() time.Time
}

func NewLookupPolicies(store Certificates) *LookupPolicies {
	return &LookupPolicies{store: store, now: time.Now}
}

func (t *LookupPolicies) Name() string { return "lookup_policies" }
func (t *LookupPolicies) Description() string {
	return "List the insured's policies on file with carriers, policy numbers, periods and limits. " +
		"Expired policies are omitted unless include_expired is set."
}

func (t *LookupPolicies) InputSchema() map[string]any {
	return object(map[string]any{
		"coverage": str("Only return policies for this coverage, e.g. gl, auto, umbrella, wc, professional"),
		"include_expired": map[string]any{
			"type":        "boolean",
			"description": "Include policies that are not active today",
		},
	})
}

type policyView struct {
	certificate.Policy
	EffectiveDate  string `json:"effective_date"`
	ExpirationDate string `json:"expiration_date"`
	Active         bool   `json:"active"`
}

func (t *LookupPolicies) Execute(ctx context.Context, input json.RawMessage, call agent.Call) (*agent.Result, error) {
	var args struct {
		Coverage       string `json:"coverage"`
		IncludeExpired bool   `json:"include_expired"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}

	var filter certificate.Coverage
	if args.Coverage != "" {
		c, err := certificate.ParseCoverage(args.Coverage)
		if err != nil {
			return nil, err
		}
		filter = c
	}

	policies, err := t.store.Policies(ctx, call.PrincipalID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	views := make([]policyView, 0, len(policies))
	for _, p := range policies {
		if filter != "" && p.Coverage != filter {
			continue
		}
		active := p.Active(now)
		if !active && !args.IncludeExpired {
			continue
		}
		views = append(views, policyView{
			Policy:         p,
			EffectiveDate:  p.EffectiveDate.Format(certificate.DateLayout),
			ExpirationDate: p.ExpirationDate.Format(certificate.DateLayout),
			Active:         active,
		})
	}

	summary := fmt.Sprintf("Found %d policies", len(views))
	if filter != "" {
		summary = fmt.Sprintf("Found %d %s policies", len(views), filter.DisplayName())
	}
	return &agent.Result{
		Summary: summary,
		Data:    map[string]any{"policies": views},
	}, nil
}
