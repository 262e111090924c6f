package db

import "context"

const upsertPolicy = `
INSERT INTO policies (
    principal_id, insured_name, insured_address, carrier, naic,
    policy_number, coverage, limits_json, effective_date, expiration_date
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (principal_id, policy_number, coverage) DO UPDATE SET
    insured_name = excluded.insured_name,
    insured_address = excluded.insured_address,
    carrier = excluded.carrier,
    naic = excluded.naic,
    limits_json = excluded.limits_json,
    effective_date = excluded.effective_date,
    expiration_date = excluded.expiration_date
RETURNING id
`

type UpsertPolicyParams struct {
	PrincipalID    string
	InsuredName    string
	InsuredAddress string
	Carrier        string
	Naic           string
	PolicyNumber   string
	Coverage       string
	LimitsJson     string
	EffectiveDate  string
	ExpirationDate string
}

func (q *Queries) UpsertPolicy(ctx context.Context, arg UpsertPolicyParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, upsertPolicy,
		arg.PrincipalID,
		arg.InsuredName,
		arg.InsuredAddress,
		arg.Carrier,
		arg.Naic,
		arg.PolicyNumber,
		arg.Coverage,
		arg.LimitsJson,
		arg.EffectiveDate,
		arg.ExpirationDate,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listPoliciesByPrincipal = `
SELECT id, principal_id, insured_name, insured_address, carrier, naic,
       policy_number, coverage, limits_json, effective_date, expiration_date
FROM policies
WHERE principal_id = ?
ORDER BY coverage, expiration_date DESC, id
`

func (q *Queries) ListPoliciesByPrincipal(ctx context.Context, principalID string) ([]Policy, error) {
	rows, err := q.db.QueryContext(ctx, listPoliciesByPrincipal, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Policy
	for rows.Next() {
		var i Policy
		if err := rows.Scan(
			&i.ID,
			&i.PrincipalID,
			&i.InsuredName,
			&i.InsuredAddress,
			&i.Carrier,
			&i.Naic,
			&i.PolicyNumber,
			&i.Coverage,
			&i.LimitsJson,
			&i.EffectiveDate,
			&i.ExpirationDate,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
