package certificate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

var (
	ErrPolicyNotFound = errors.New("policy not found")
	ErrNoActivePolicy = errors.New("no active policy")
)

// namespace scopes certificate ids so that regenerating a certificate for the
// same holder in the same conversation yields the same id.
var namespace = uuid.MustParse("6f0e2f0c-4d0b-4b8e-9a43-2c1f6f1a5e11")

type Coverage string

const (
	CoverageGeneralLiability Coverage = "gl"
	CoverageAuto             Coverage = "auto"
	CoverageUmbrella         Coverage = "umbrella"
	CoverageWorkersComp      Coverage = "wc"
	CoverageProfessional     Coverage = "professional"
)

var coverageNames = map[Coverage]string{
	CoverageGeneralLiability: "Commercial General Liability",
	CoverageAuto:             "Automobile Liability",
	CoverageUmbrella:         "Umbrella Liability",
	CoverageWorkersComp:      "Workers Compensation and Employers' Liability",
	CoverageProfessional:     "Professional Liability",
}

var coverageAliases = map[string]Coverage{
	"gl":                   CoverageGeneralLiability,
	"cgl":                  CoverageGeneralLiability,
	"general_liability":    CoverageGeneralLiability,
	"general liability":    CoverageGeneralLiability,
	"auto":                 CoverageAuto,
	"automobile":           CoverageAuto,
	"auto_liability":       CoverageAuto,
	"umbrella":             CoverageUmbrella,
	"excess":               CoverageUmbrella,
	"wc":                   CoverageWorkersComp,
	"workers_comp":         CoverageWorkersComp,
	"workers_compensation": CoverageWorkersComp,
	"workers compensation": CoverageWorkersComp,
	"professional":         CoverageProfessional,
	"e&o":                  CoverageProfessional,
	"errors_and_omissions": CoverageProfessional,
}

// Coverages lists every known coverage code in display order.
func Coverages() []Coverage {
	return []Coverage{
		CoverageGeneralLiability,
		CoverageAuto,
		CoverageUmbrella,
		CoverageWorkersComp,
		CoverageProfessional,
	}
}

func ParseCoverage(s string) (Coverage, error) {
	c, ok := coverageAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown coverage %q", s)
	}
	return c, nil
}

func (c Coverage) DisplayName() string {
	if name, ok := coverageNames[c]; ok {
		return name
	}
	return string(c)
}

// Policy is an insurance policy on file for a principal. Limits are in whole
// dollars keyed by limit name, e.g. "each_occurrence".
type Policy struct {
	ID             int64            `json:"id"`
	PrincipalID    string           `json:"-"`
	InsuredName    string           `json:"insured_name"`
	InsuredAddress string           `json:"insured_address,omitempty"`
	Carrier        string           `json:"carrier"`
	NAIC           string           `json:"naic,omitempty"`
	PolicyNumber   string           `json:"policy_number"`
	Coverage       Coverage         `json:"coverage"`
	Limits         map[string]int64 `json:"limits"`
	EffectiveDate  time.Time        `json:"effective_date"`
	ExpirationDate time.Time        `json:"expiration_date"`
}

// Active reports whether at falls within the policy period. The expiration
// date itself is the last covered day.
func (p Policy) Active(at time.Time) bool {
	day := truncateDay(at)
	return !day.Before(p.EffectiveDate) && !day.After(p.ExpirationDate)
}

func (p Policy) Validate() error {
	switch {
	case strings.TrimSpace(p.InsuredName) == "":
		return errors.New("insured name is required")
	case strings.TrimSpace(p.Carrier) == "":
		return errors.New("carrier is required")
	case strings.TrimSpace(p.PolicyNumber) == "":
		return errors.New("policy number is required")
	case p.EffectiveDate.IsZero() || p.ExpirationDate.IsZero():
		return errors.New("effective and expiration dates are required")
	case p.ExpirationDate.Before(p.EffectiveDate):
		return errors.New("expiration date precedes effective date")
	}
	if _, ok := coverageNames[p.Coverage]; !ok {
		return fmt.Errorf("unknown coverage %q", p.Coverage)
	}
	return nil
}

// Request describes a certificate the principal has asked for.
type Request struct {
	HolderName        string     `json:"holder_name"`
	HolderAddress     string     `json:"holder_address"`
	Coverages         []Coverage `json:"coverages"`
	Description       string     `json:"description,omitempty"`
	AdditionalInsured bool       `json:"additional_insured,omitempty"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.HolderName) == "" {
		return errors.New("certificate holder name is required")
	}
	if strings.TrimSpace(r.HolderAddress) == "" {
		return errors.New("certificate holder address is required")
	}
	if len(r.Coverages) == 0 {
		return errors.New("at least one coverage is required")
	}
	return nil
}

// Line is one coverage row on a certificate.
type Line struct {
	Coverage       Coverage         `json:"coverage"`
	Name           string           `json:"name"`
	Carrier        string           `json:"carrier"`
	NAIC           string           `json:"naic,omitempty"`
	PolicyNumber   string           `json:"policy_number"`
	EffectiveDate  string           `json:"effective_date"`
	ExpirationDate string           `json:"expiration_date"`
	Limits         map[string]int64 `json:"limits"`
}

type Certificate struct {
	ID                string `json:"id"`
	Number            string `json:"number"`
	PrincipalID       string `json:"-"`
	ConversationID    string `json:"conversation_id"`
	InsuredName       string `json:"insured_name"`
	InsuredAddress    string `json:"insured_address,omitempty"`
	HolderName        string `json:"holder_name"`
	HolderAddress     string `json:"holder_address"`
	Description       string `json:"description,omitempty"`
	AdditionalInsured bool   `json:"additional_insured,omitempty"`
	Lines             []Line `json:"lines"`
	IssuedAt          string `json:"issued_at"`
	Document          string `json:"-"`
}

// Build matches the request against the principal's policies and assembles
// a certificate. Every requested coverage must have a policy active at the
// issue date.
func Build(req Request, policies []Policy, principalID, conversationID string, at time.Time) (*Certificate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var lines []Line
	var insured *Policy
	for _, c := range dedupe(req.Coverages) {
		p, err := match(c, policies, at)
		if err != nil {
			return nil, fmt.Errorf("%w for %s", err, c.DisplayName())
		}
		if insured == nil {
			insured = p
		}
		lines = append(lines, Line{
			Coverage:       c,
			Name:           c.DisplayName(),
			Carrier:        p.Carrier,
			NAIC:           p.NAIC,
			PolicyNumber:   p.PolicyNumber,
			EffectiveDate:  p.EffectiveDate.Format(DateLayout),
			ExpirationDate: p.ExpirationDate.Format(DateLayout),
			Limits:         p.Limits,
		})
	}

	id := ID(principalID, conversationID, req.HolderName)
	return &Certificate{
		ID:                id.String(),
		Number:            Number(id),
		PrincipalID:       principalID,
		ConversationID:    conversationID,
		InsuredName:       insured.InsuredName,
		InsuredAddress:    insured.InsuredAddress,
		HolderName:        strings.TrimSpace(req.HolderName),
		HolderAddress:     strings.TrimSpace(req.HolderAddress),
		Description:       strings.TrimSpace(req.Description),
		AdditionalInsured: req.AdditionalInsured,
		Lines:             lines,
		IssuedAt:          at.Format(DateLayout),
	}, nil
}

// match picks the active policy for c that expires last.
func match(c Coverage, policies []Policy, at time.Time) (*Policy, error) {
	var best *Policy
	found := false
	for i := range policies {
		p := &policies[i]
		if p.Coverage != c {
			continue
		}
		found = true
		if !p.Active(at) {
			continue
		}
		if best == nil || p.ExpirationDate.After(best.ExpirationDate) {
			best = p
		}
	}
	switch {
	case best != nil:
		return best, nil
	case found:
		return nil, ErrNoActivePolicy
	default:
		return nil, ErrPolicyNotFound
	}
}

// ID is stable for a holder within one principal's conversation, so
// regeneration overwrites the earlier certificate.
func ID(principalID, conversationID, holderName string) uuid.UUID {
	holder := strings.Join(strings.Fields(strings.ToLower(holderName)), " ")
	return uuid.NewSHA1(namespace, []byte(principalID+"|"+conversationID+"|"+holder))
}

// Number is the human-facing certificate number derived from its id.
func Number(id uuid.UUID) string {
	return "COI-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10])
}

func dedupe(cs []Coverage) []Coverage {
	out := make([]Coverage, 0, len(cs))
	for _, c := range cs {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}
