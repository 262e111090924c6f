package db

import "context"

const upsertCertificate = `
INSERT INTO certificates (
    id, principal_id, conversation_id, number, holder_name, holder_address,
    description, coverages_json, document, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    holder_name = excluded.holder_name,
    holder_address = excluded.holder_address,
    description = excluded.description,
    coverages_json = excluded.coverages_json,
    document = excluded.document,
    updated_at = excluded.updated_at
WHERE certificates.principal_id = excluded.principal_id
`

type UpsertCertificateParams struct {
	ID             string
	PrincipalID    string
	ConversationID string
	Number         string
	HolderName     string
	HolderAddress  string
	Description    string
	CoveragesJson  string
	Document       string
	UpdatedAt      string
}

// UpsertCertificate reports whether a row was written. A certificate id owned
// by another principal is left untouched.
func (q *Queries) UpsertCertificate(ctx context.Context, arg UpsertCertificateParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, upsertCertificate,
		arg.ID,
		arg.PrincipalID,
		arg.ConversationID,
		arg.Number,
		arg.HolderName,
		arg.HolderAddress,
		arg.Description,
		arg.CoveragesJson,
		arg.Document,
		arg.UpdatedAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const getCertificate = `
SELECT id, principal_id, conversation_id, number, holder_name, holder_address,
       description, coverages_json, document, created_at, updated_at
FROM certificates
WHERE id = ? AND principal_id = ?
`

type GetCertificateParams struct {
	ID          string
	PrincipalID string
}

func (q *Queries) GetCertificate(ctx context.Context, arg GetCertificateParams) (Certificate, error) {
	row := q.db.QueryRowContext(ctx, getCertificate, arg.ID, arg.PrincipalID)
	var i Certificate
	err := row.Scan(
		&i.ID,
		&i.PrincipalID,
		&i.ConversationID,
		&i.Number,
		&i.HolderName,
		&i.HolderAddress,
		&i.Description,
		&i.CoveragesJson,
		&i.Document,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listCertificatesByPrincipal = `
SELECT id, principal_id, conversation_id, number, holder_name, holder_address,
       description, coverages_json, document, created_at, updated_at
FROM certificates
WHERE principal_id = ?
ORDER BY updated_at DESC, id
LIMIT ?
`

type ListCertificatesByPrincipalParams struct {
	PrincipalID string
	Limit       int64
}

func (q *Queries) ListCertificatesByPrincipal(ctx context.Context, arg ListCertificatesByPrincipalParams) ([]Certificate, error) {
	rows, err := q.db.QueryContext(ctx, listCertificatesByPrincipal, arg.PrincipalID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Certificate
	for rows.Next() {
		var i Certificate
		if err := rows.Scan(
			&i.ID,
			&i.PrincipalID,
			&i.ConversationID,
			&i.Number,
			&i.HolderName,
			&i.HolderAddress,
			&i.Description,
			&i.CoveragesJson,
			&i.Document,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const deleteCertificateFTS = `
DELETE FROM certificates_fts WHERE certificate_id = ?
`

func (q *Queries) DeleteCertificateFTS(ctx context.Context, certificateID string) error {
	_, err := q.db.ExecContext(ctx, deleteCertificateFTS, certificateID)
	return err
}

const insertCertificateFTS = `
INSERT INTO certificates_fts (certificate_id, holder_name, description) VALUES (?, ?, ?)
`

type InsertCertificateFTSParams struct {
	CertificateID string
	HolderName    string
	Description   string
}

func (q *Queries) InsertCertificateFTS(ctx context.Context, arg InsertCertificateFTSParams) error {
	_, err := q.db.ExecContext(ctx, insertCertificateFTS, arg.CertificateID, arg.HolderName, arg.Description)
	return err
}

const searchCertificates = `
SELECT c.id, c.number, c.holder_name, c.description, c.conversation_id, c.updated_at,
       bm25(certificates_fts) AS rank
FROM certificates_fts f
JOIN certificates c ON c.id = f.certificate_id
WHERE certificates_fts MATCH ?
  AND c.principal_id = ?
ORDER BY rank
LIMIT ?
`

type SearchCertificatesParams struct {
	Query       string
	PrincipalID string
	Limit       int64
}

type SearchCertificatesRow struct {
	ID             string
	Number         string
	HolderName     string
	Description    string
	ConversationID string
	UpdatedAt      string
	Rank           float64
}

func (q *Queries) SearchCertificates(ctx context.Context, arg SearchCertificatesParams) ([]SearchCertificatesRow, error) {
	rows, err := q.db.QueryContext(ctx, searchCertificates, arg.Query, arg.PrincipalID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SearchCertificatesRow
	for rows.Next() {
		var i SearchCertificatesRow
		if err := rows.Scan(
			&i.ID,
			&i.Number,
			&i.HolderName,
			&i.Description,
			&i.ConversationID,
			&i.UpdatedAt,
			&i.Rank,
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
