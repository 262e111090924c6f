package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gail/internal/agent"
	"gail/internal/certificate"
)

// Certificates is the storage the certificate tools need.
type Certificates interface {
	Issue(ctx context.Context, req certificate.Request, principalID, conversationID string) (*certificate.Certificate, error)
	Policies(ctx context.Context, principalID string) ([]certificate.Policy, error)
	Search(ctx context.Context, principalID, query string, limit int) ([]certificate.SearchResult, error)
}

// ProcessCOIRequest generates a certificate of insurance and returns it as
// an artifact.
type ProcessCOIRequest struct {
	store Certificates
}

func NewProcessCOIRequest(store Certificates) *ProcessCOIRequest {
	return &ProcessCOIRequest{store: store}
}

func (t *ProcessCOIRequest) Name() string { return "process_coi_request" }
func (t *ProcessCOIRequest) Description() string {
	return "Generate a certificate of insurance (COI) for a certificate holder from the insured's policies on file. " +
		"Requesting the same holder again in this conversation replaces the earlier certificate."
}

func (t *ProcessCOIRequest) InputSchema() map[string]any {
	codes := make([]string, 0, len(certificate.Coverages()))
	for _, c := range certificate.Coverages() {
		codes = append(codes, string(c))
	}
	return object(map[string]any{
		"holder_name":    str("Legal name of the certificate holder"),
		"holder_address": str("Mailing address of the certificate holder"),
		"coverages": map[string]any{
			"type":        "array",
			"description": "Coverages to show on the certificate",
			"items":       map[string]any{"type": "string", "enum": codes},
			"minItems":    1,
		},
		"description": str("Description of operations, locations or project, if the holder requires one"),
		"additional_insured": map[string]any{
			"type":        "boolean",
			"description": "Whether the holder is to be named as additional insured",
		},
	}, "holder_name", "holder_address", "coverages")
}

func (t *ProcessCOIRequest) Execute(ctx context.Context, input json.RawMessage, call agent.Call) (*agent.Result, error) {
	var args struct {
		HolderName        string   `json:"holder_name"`
		HolderAddress     string   `json:"holder_address"`
		Coverages         []string `json:"coverages"`
		Description       string   `json:"description"`
		AdditionalInsured bool     `json:"additional_insured"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}

	req := certificate.Request{
		HolderName:        args.HolderName,
		HolderAddress:     args.HolderAddress,
		Description:       args.Description,
		AdditionalInsured: args.AdditionalInsured,
	}
	for _, s := range args.Coverages {
		c, err := certificate.ParseCoverage(s)
		if err != nil {
			return nil, err
		}
		req.Coverages = append(req.Coverages, c)
	}

	cert, err := t.store.Issue(ctx, req, call.PrincipalID, call.ConversationID)
	if err != nil {
		return nil, err
	}

	slog.Info("certificate issued", "number", cert.Number, "holder", cert.HolderName, "conversation_id", call.ConversationID)

	return &agent.Result{
		Summary: fmt.Sprintf("Generated certificate %s for %s", cert.Number, cert.HolderName),
		Data:    cert,
		Artifact: &agent.Artifact{
			Type:     "certificate",
			ID:       cert.ID,
			Title:    fmt.Sprintf("Certificate of Insurance %s: %s", cert.Number, cert.HolderName),
			MimeType: certificate.MimeType,
			Content:  cert.Document,
			Metadata: map[string]any{
				"number":          cert.Number,
				"holder_name":     cert.HolderName,
				"conversation_id": cert.ConversationID,
				"issued_at":       cert.IssuedAt,
			},
		},
	}, nil
}
