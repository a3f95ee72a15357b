package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createContact = `
INSERT INTO contacts (organization_id, full_name, email, phone)
VALUES ($1, $2, $3, $4)
RETURNING id, organization_id, full_name, email, phone, created_at
`

type CreateContactParams struct {
	OrganizationID pgtype.UUID `json:"organization_id"`
	FullName       string      `json:"full_name"`
	Email          pgtype.Text `json:"email"`
	Phone          pgtype.Text `json:"phone"`
}

func (q *Queries) CreateContact(ctx context.Context, arg CreateContactParams) (Contact, error) {
	row := q.db.QueryRow(ctx, createContact, arg.OrganizationID, arg.FullName, arg.Email, arg.Phone)
	var i Contact
	err := row.Scan(&i.ID, &i.OrganizationID, &i.FullName, &i.Email, &i.Phone, &i.CreatedAt)
	return i, err
}

const getContact = `
SELECT id, organization_id, full_name, email, phone, created_at
FROM contacts
WHERE id = $1 AND organization_id = $2
`

type GetContactParams struct {
	ID             pgtype.UUID `json:"id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
}

func (q *Queries) GetContact(ctx context.Context, arg GetContactParams) (Contact, error) {
	row := q.db.QueryRow(ctx, getContact, arg.ID, arg.OrganizationID)
	var i Contact
	err := row.Scan(&i.ID, &i.OrganizationID, &i.FullName, &i.Email, &i.Phone, &i.CreatedAt)
	return i, err
}

const createCompany = `
INSERT INTO companies (organization_id, name, email, phone)
VALUES ($1, $2, $3, $4)
RETURNING id, organization_id, name, email, phone, created_at
`

type CreateCompanyParams struct {
	OrganizationID pgtype.UUID `json:"organization_id"`
	Name           string      `json:"name"`
	Email          pgtype.Text `json:"email"`
	Phone          pgtype.Text `json:"phone"`
}

func (q *Queries) CreateCompany(ctx context.Context, arg CreateCompanyParams) (Company, error) {
	row := q.db.QueryRow(ctx, createCompany, arg.OrganizationID, arg.Name, arg.Email, arg.Phone)
	var i Company
	err := row.Scan(&i.ID, &i.OrganizationID, &i.Name, &i.Email, &i.Phone, &i.CreatedAt)
	return i, err
}

const getCompany = `
SELECT id, organization_id, name, email, phone, created_at
FROM companies
WHERE id = $1 AND organization_id = $2
`

type GetCompanyParams struct {
	ID             pgtype.UUID `json:"id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
}

func (q *Queries) GetCompany(ctx context.Context, arg GetCompanyParams) (Company, error) {
	row := q.db.QueryRow(ctx, getCompany, arg.ID, arg.OrganizationID)
	var i Company
	err := row.Scan(&i.ID, &i.OrganizationID, &i.Name, &i.Email, &i.Phone, &i.CreatedAt)
	return i, err
}

// Contact details win over company details when a document has both.
const getDocumentRecipient = `
SELECT COALESCE(c.full_name, co.name)::text AS name,
       COALESCE(c.email, co.email) AS email,
       COALESCE(c.phone, co.phone) AS phone
FROM documents d
LEFT JOIN contacts c ON c.id = d.contact_id
LEFT JOIN companies co ON co.id = d.company_id
WHERE d.id = $1 AND d.organization_id = $2
`

type GetDocumentRecipientParams struct {
	DocumentID     pgtype.UUID `json:"document_id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
}

func (q *Queries) GetDocumentRecipient(ctx context.Context, arg GetDocumentRecipientParams) (GetDocumentRecipientRow, error) {
	row := q.db.QueryRow(ctx, getDocumentRecipient, arg.DocumentID, arg.OrganizationID)
	var i GetDocumentRecipientRow
	err := row.Scan(&i.Name, &i.Email, &i.Phone)
	return i, err
}
