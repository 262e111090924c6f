package certificate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gail/internal/db"
)

var (
	ErrNotFound = errors.New("certificate not found")
	ErrNotOwner = errors.New("certificate belongs to another principal")
)

type Store struct {
	db  *db.DB
	q   *db.Queries
	now func() time.Time
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database, q: db.New(database.Conn()), now: time.Now}
}

// AddPolicy inserts p, or updates the policy already on file with the same
// number and coverage.
func (s *Store) AddPolicy(ctx context.Context, p Policy) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	limits, err := json.Marshal(p.Limits)
	if err != nil {
		return 0, err
	}
	id, err := s.q.UpsertPolicy(ctx, db.UpsertPolicyParams{
		PrincipalID:    p.PrincipalID,
		InsuredName:    strings.TrimSpace(p.InsuredName),
		InsuredAddress: strings.TrimSpace(p.InsuredAddress),
		Carrier:        strings.TrimSpace(p.Carrier),
		Naic:           strings.TrimSpace(p.NAIC),
		PolicyNumber:   strings.TrimSpace(p.PolicyNumber),
		Coverage:       string(p.Coverage),
		LimitsJson:     string(limits),
		EffectiveDate:  p.EffectiveDate.Format(DateLayout),
		ExpirationDate: p.ExpirationDate.Format(DateLayout),
	})
	if err != nil {
		return 0, fmt.Errorf("saving policy %s: %w", p.PolicyNumber, err)
	}
	return id, nil
}

func (s *Store) Policies(ctx context.Context, principalID string) ([]Policy, error) {
	rows, err := s.q.ListPoliciesByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	out := make([]Policy, 0, len(rows))
	for _, r := range rows {
		p, err := policyFromRow(r)
		if err != nil {
			slog.Warn("skipping unreadable policy", "policy_id", r.ID, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Issue builds, renders and saves a certificate for req. Saving is an
// upsert on the certificate id, so a repeated request overwrites.
func (s *Store) Issue(ctx context.Context, req Request, principalID, conversationID string) (*Certificate, error) {
	policies, err := s.Policies(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("loading policies: %w", err)
	}
	now := s.now().UTC()
	c, err := Build(req, policies, principalID, conversationID, now)
	if err != nil {
		return nil, err
	}
	if err := Render(c); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) Save(ctx context.Context, c *Certificate) error {
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}
	err = s.db.Tx(ctx, func(q *db.Queries) error {
		written, err := q.UpsertCertificate(ctx, db.UpsertCertificateParams{
			ID:             c.ID,
			PrincipalID:    c.PrincipalID,
			ConversationID: c.ConversationID,
			Number:         c.Number,
			HolderName:     c.HolderName,
			HolderAddress:  c.HolderAddress,
			Description:    c.Description,
			CoveragesJson:  string(body),
			Document:       c.Document,
			UpdatedAt:      s.now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return err
		}
		if !written {
			return ErrNotOwner
		}
		if err := q.DeleteCertificateFTS(ctx, c.ID); err != nil {
			return err
		}
		return q.InsertCertificateFTS(ctx, db.InsertCertificateFTSParams{
			CertificateID: c.ID,
			HolderName:    c.HolderName,
			Description:   c.Description,
		})
	})
	if err != nil {
		return fmt.Errorf("saving certificate %s: %w", c.Number, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id, principalID string) (*Certificate, error) {
	row, err := s.q.GetCertificate(ctx, db.GetCertificateParams{ID: id, PrincipalID: principalID})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return certificateFromRow(row)
}

// List returns the principal's certificates, most recent first.
func (s *Store) List(ctx context.Context, principalID string, limit int) ([]Certificate, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.q.ListCertificatesByPrincipal(ctx, db.ListCertificatesByPrincipalParams{
		PrincipalID: principalID,
		Limit:       int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]Certificate, 0, len(rows))
	for _, r := range rows {
		c, err := certificateFromRow(r)
		if err != nil {
			slog.Warn("skipping unreadable certificate", "certificate_id", r.ID, "error", err)
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

// SearchResult is a certificate summary matched by keyword.
type SearchResult struct {
	ID             string  `json:"id"`
	Number         string  `json:"number"`
	HolderName     string  `json:"holder_name"`
	Description    string  `json:"description,omitempty"`
	ConversationID string  `json:"conversation_id"`
	UpdatedAt      string  `json:"updated_at"`
	Score          float64 `json:"score"`
}

// Search matches query against certificate holder names and descriptions.
func (s *Store) Search(ctx context.Context, principalID, query string, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.q.SearchCertificates(ctx, db.SearchCertificatesParams{
		Query:       escapeFTS5Query(query),
		PrincipalID: principalID,
		Limit:       int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("searching certificates: %w", err)
	}
	out := make([]SearchResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, SearchResult{
			ID:             r.ID,
			Number:         r.Number,
			HolderName:     r.HolderName,
			Description:    r.Description,
			ConversationID: r.ConversationID,
			UpdatedAt:      r.UpdatedAt,
			// BM25 is negative, more negative is better.
			Score: -r.Rank,
		})
	}
	return out, nil
}

func policyFromRow(r db.Policy) (Policy, error) {
	eff, err := ParseDate(r.EffectiveDate)
	if err != nil {
		return Policy{}, err
	}
	exp, err := ParseDate(r.ExpirationDate)
	if err != nil {
		return Policy{}, err
	}
	var limits map[string]int64
	if err := json.Unmarshal([]byte(r.LimitsJson), &limits); err != nil {
		return Policy{}, err
	}
	return Policy{
		ID:             r.ID,
		PrincipalID:    r.PrincipalID,
		InsuredName:    r.InsuredName,
		InsuredAddress: r.InsuredAddress,
		Carrier:        r.Carrier,
		NAIC:           r.Naic,
		PolicyNumber:   r.PolicyNumber,
		Coverage:       Coverage(r.Coverage),
		Limits:         limits,
		EffectiveDate:  eff,
		ExpirationDate: exp,
	}, nil
}

func certificateFromRow(r db.Certificate) (*Certificate, error) {
	var c Certificate
	if err := json.Unmarshal([]byte(r.CoveragesJson), &c); err != nil {
		return nil, fmt.Errorf("decoding certificate %s: %w", r.ID, err)
	}
	c.ID = r.ID
	c.PrincipalID = r.PrincipalID
	c.ConversationID = r.ConversationID
	c.Number = r.Number
	c.HolderName = r.HolderName
	c.HolderAddress = r.HolderAddress
	c.Description = r.Description
	c.Document = r.Document
	return &c, nil
}

// escapeFTS5Query quotes each term so user input cannot inject FTS5 syntax.
func escapeFTS5Query(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
