package repotest

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ repository.Querier = (*view)(nil)

// organizations

func (v *view) CreateOrganization(ctx context.Context, arg repository.CreateOrganizationParams) (repository.Organization, error) {
	if err := v.fault("CreateOrganization"); err != nil {
		return repository.Organization{}, err
	}
	for _, o := range v.st.orgs {
		if o.Slug == arg.Slug {
			return repository.Organization{}, uniqueViolation("organizations_slug_key")
		}
	}
	o := repository.Organization{ID: newID(), Name: arg.Name, Slug: arg.Slug, CreatedAt: v.now(), UpdatedAt: v.now()}
	v.st.orgs = append(v.st.orgs, o)
	return o, nil
}

func (v *view) GetOrganization(ctx context.Context, id pgtype.UUID) (repository.Organization, error) {
	if err := v.fault("GetOrganization"); err != nil {
		return repository.Organization{}, err
	}
	for _, o := range v.st.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return repository.Organization{}, errNoRows
}

func (v *view) ListOrganizationIDs(ctx context.Context) ([]pgtype.UUID, error) {
	if err := v.fault("ListOrganizationIDs"); err != nil {
		return nil, err
	}
	ids := make([]pgtype.UUID, 0, len(v.st.orgs))
	for _, o := range v.st.orgs {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (v *view) GetOrganizationPaymentConfig(ctx context.Context, organizationID pgtype.UUID) (repository.OrganizationPaymentConfig, error) {
	if err := v.fault("GetOrganizationPaymentConfig"); err != nil {
		return repository.OrganizationPaymentConfig{}, err
	}
	for _, c := range v.st.configs {
		if c.OrganizationID == organizationID {
			return c, nil
		}
	}
	return repository.OrganizationPaymentConfig{}, errNoRows
}

func (v *view) UpsertOrganizationPaymentConfig(ctx context.Context, arg repository.UpsertOrganizationPaymentConfigParams) (repository.OrganizationPaymentConfig, error) {
	if err := v.fault("UpsertOrganizationPaymentConfig"); err != nil {
		return repository.OrganizationPaymentConfig{}, err
	}
	c := repository.OrganizationPaymentConfig{
		OrganizationID:         arg.OrganizationID,
		Provider:               arg.Provider,
		SecretKeyEncrypted:     arg.SecretKeyEncrypted,
		WebhookSecretEncrypted: arg.WebhookSecretEncrypted,
		IsTestMode:             arg.IsTestMode,
		CreatedAt:              v.now(),
		UpdatedAt:              v.now(),
	}
	for i, existing := range v.st.configs {
		if existing.OrganizationID == arg.OrganizationID {
			c.CreatedAt = existing.CreatedAt
			v.st.configs[i] = c
			return c, nil
		}
	}
	v.st.configs = append(v.st.configs, c)
	return c, nil
}

// recipients

func (v *view) CreateContact(ctx context.Context, arg repository.CreateContactParams) (repository.Contact, error) {
	if err := v.fault("CreateContact"); err != nil {
		return repository.Contact{}, err
	}
	c := repository.Contact{ID: newID(), OrganizationID: arg.OrganizationID, FullName: arg.FullName, Email: arg.Email, Phone: arg.Phone, CreatedAt: v.now()}
	v.st.contacts = append(v.st.contacts, c)
	return c, nil
}

func (v *view) GetContact(ctx context.Context, arg repository.GetContactParams) (repository.Contact, error) {
	for _, c := range v.st.contacts {
		if c.ID == arg.ID && c.OrganizationID == arg.OrganizationID {
			return c, nil
		}
	}
	return repository.Contact{}, errNoRows
}

func (v *view) CreateCompany(ctx context.Context, arg repository.CreateCompanyParams) (repository.Company, error) {
	if err := v.fault("CreateCompany"); err != nil {
		return repository.Company{}, err
	}
	c := repository.Company{ID: newID(), OrganizationID: arg.OrganizationID, Name: arg.Name, Email: arg.Email, Phone: arg.Phone, CreatedAt: v.now()}
	v.st.companies = append(v.st.companies, c)
	return c, nil
}

func (v *view) GetCompany(ctx context.Context, arg repository.GetCompanyParams) (repository.Company, error) {
	for _, c := range v.st.companies {
		if c.ID == arg.ID && c.OrganizationID == arg.OrganizationID {
			return c, nil
		}
	}
	return repository.Company{}, errNoRows
}

func (v *view) GetDocumentRecipient(ctx context.Context, arg repository.GetDocumentRecipientParams) (repository.GetDocumentRecipientRow, error) {
	if err := v.fault("GetDocumentRecipient"); err != nil {
		return repository.GetDocumentRecipientRow{}, err
	}
	d, ok := v.findDocument(arg.DocumentID, arg.OrganizationID, true)
	if !ok {
		return repository.GetDocumentRecipientRow{}, errNoRows
	}
	var row repository.GetDocumentRecipientRow
	if d.CompanyID.Valid {
		for _, c := range v.st.companies {
			if c.ID == d.CompanyID {
				row = repository.GetDocumentRecipientRow{Name: pgtype.Text{String: c.Name, Valid: true}, Email: c.Email, Phone: c.Phone}
			}
		}
	}
	if d.ContactID.Valid {
		for _, c := range v.st.contacts {
			if c.ID == d.ContactID {
				row.Name = pgtype.Text{String: c.FullName, Valid: true}
				if c.Email.Valid {
					row.Email = c.Email
				}
				if c.Phone.Valid {
					row.Phone = c.Phone
				}
			}
		}
	}
	return row, nil
}

// sequences

func (v *view) NextDocumentSequenceValue(ctx context.Context, arg repository.NextDocumentSequenceValueParams) (repository.DocumentSequence, error) {
	if err := v.fault("NextDocumentSequenceValue"); err != nil {
		return repository.DocumentSequence{}, err
	}
	key := seqKey{org: arg.OrganizationID.Bytes, docType: arg.DocumentType, period: arg.Period}
	seq, ok := v.st.sequences[key]
	if !ok {
		seq = repository.DocumentSequence{
			OrganizationID: arg.OrganizationID,
			DocumentType:   arg.DocumentType,
			Period:         arg.Period,
			Prefix:         arg.Prefix,
			Padding:        arg.Padding,
			CreatedAt:      v.now(),
		}
	}
	seq.LastValue++
	seq.UpdatedAt = v.now()
	v.st.sequences[key] = seq
	return seq, nil
}

func (v *view) GetDocumentSequence(ctx context.Context, arg repository.GetDocumentSequenceParams) (repository.DocumentSequence, error) {
	seq, ok := v.st.sequences[seqKey{org: arg.OrganizationID.Bytes, docType: arg.DocumentType, period: arg.Period}]
	if !ok {
		return repository.DocumentSequence{}, errNoRows
	}
	return seq, nil
}

// documents

func (v *view) findDocument(id, org pgtype.UUID, requireLive bool) (*repository.Document, bool) {
	for i := range v.st.documents {
		d := &v.st.documents[i]
		if d.ID == id && d.OrganizationID == org {
			if requireLive && d.DeletedAt.Valid {
				return nil, false
			}
			return d, true
		}
	}
	return nil, false
}

// update applies fn to the matching live document when cond holds, mirroring
// UPDATE ... WHERE ... RETURNING.
func (v *view) update(id, org pgtype.UUID, cond func(*repository.Document) bool, fn func(*repository.Document)) (repository.Document, error) {
	d, ok := v.findDocument(id, org, true)
	if !ok || !cond(d) {
		return repository.Document{}, errNoRows
	}
	fn(d)
	d.UpdatedAt = v.now()
	return *d, nil
}

func (v *view) CreateDocument(ctx context.Context, arg repository.CreateDocumentParams) (repository.Document, error) {
	if err := v.fault("CreateDocument"); err != nil {
		return repository.Document{}, err
	}
	d := repository.Document{
		ID:             newID(),
		OrganizationID: arg.OrganizationID,
		DocumentType:   arg.DocumentType,
		Status:         "draft",
		Currency:       arg.Currency,
		SubtotalCents:  arg.SubtotalCents,
		VatCents:       arg.VatCents,
		TotalCents:     arg.TotalCents,
		IssueDate:      arg.IssueDate,
		DueDate:        arg.DueDate,
		ValidUntil:     arg.ValidUntil,
		ContactID:      arg.ContactID,
		CompanyID:      arg.CompanyID,
		CreatedBy:      arg.CreatedBy,
		Notes:          arg.Notes,
		SourceQuoteID:  arg.SourceQuoteID,
		CreatedAt:      v.now(),
		UpdatedAt:      v.now(),
	}
	if d.TotalCents != d.SubtotalCents+d.VatCents {
		return repository.Document{}, checkViolation("documents_total_check")
	}
	v.st.documents = append(v.st.documents, d)
	return d, nil
}

func (v *view) GetDocument(ctx context.Context, arg repository.GetDocumentParams) (repository.Document, error) {
	if err := v.fault("GetDocument"); err != nil {
		return repository.Document{}, err
	}
	d, ok := v.findDocument(arg.ID, arg.OrganizationID, true)
	if !ok {
		return repository.Document{}, errNoRows
	}
	return *d, nil
}

func (v *view) GetDocumentForUpdate(ctx context.Context, arg repository.GetDocumentParams) (repository.Document, error) {
	if err := v.fault("GetDocumentForUpdate"); err != nil {
		return repository.Document{}, err
	}
	return v.GetDocument(ctx, arg)
}

func (v *view) GetDocumentByID(ctx context.Context, id pgtype.UUID) (repository.Document, error) {
	if err := v.fault("GetDocumentByID"); err != nil {
		return repository.Document{}, err
	}
	for _, d := range v.st.documents {
		if d.ID == id && !d.DeletedAt.Valid {
			return d, nil
		}
	}
	return repository.Document{}, errNoRows
}

func (v *view) ListDocuments(ctx context.Context, arg repository.ListDocumentsParams) ([]repository.Document, error) {
	var out []repository.Document
	for i := len(v.st.documents) - 1; i >= 0; i-- {
		d := v.st.documents[i]
		if d.OrganizationID != arg.OrganizationID || d.DeletedAt.Valid {
			continue
		}
		if arg.DocumentType.Valid && d.DocumentType != arg.DocumentType.String {
			continue
		}
		if arg.Status.Valid && d.Status != arg.Status.String {
			continue
		}
		out = append(out, d)
	}
	return page(out, arg.Limit, arg.Offset), nil
}

func page[T any](items []T, limit, offset int32) []T {
	if int(offset) >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

func (v *view) UpdateDocumentDraft(ctx context.Context, arg repository.UpdateDocumentDraftParams) (repository.Document, error) {
	if err := v.fault("UpdateDocumentDraft"); err != nil {
		return repository.Document{}, err
	}
	if arg.TotalCents != arg.SubtotalCents+arg.VatCents {
		return repository.Document{}, checkViolation("documents_total_check")
	}
	return v.update(arg.ID, arg.OrganizationID,
		func(d *repository.Document) bool { return d.Status == "draft" },
		func(d *repository.Document) {
			d.Currency = arg.Currency
			d.SubtotalCents = arg.SubtotalCents
			d.VatCents = arg.VatCents
			d.TotalCents = arg.TotalCents
			d.IssueDate = arg.IssueDate
			d.DueDate = arg.DueDate
			d.ValidUntil = arg.ValidUntil
			d.ContactID = arg.ContactID
			d.CompanyID = arg.CompanyID
			d.Notes = arg.Notes
		})
}

func (v *view) MarkDocumentSent(ctx context.Context, arg repository.MarkDocumentSentParams) (repository.Document, error) {
	if err := v.fault("MarkDocumentSent"); err != nil {
		return repository.Document{}, err
	}
	target, ok := v.findDocument(arg.ID, arg.OrganizationID, true)
	if ok && !target.Number.Valid {
		for _, d := range v.st.documents {
			if d.ID != arg.ID && d.OrganizationID == arg.OrganizationID &&
				d.DocumentType == target.DocumentType && d.Number.Valid && d.Number.String == arg.Number {
				return repository.Document{}, uniqueViolation("idx_documents_number")
			}
		}
	}
	return v.update(arg.ID, arg.OrganizationID,
		func(d *repository.Document) bool { return d.Status == "draft" },
		func(d *repository.Document) {
			if !d.Number.Valid {
				d.Number = pgtype.Text{String: arg.Number, Valid: true}
			}
			d.Status = "sent"
			d.SentAt = arg.SentAt
		})
}

func (v *view) TransitionDocument(ctx context.Context, arg repository.TransitionDocumentParams) (repository.Document, error) {
	if err := v.fault("TransitionDocument"); err != nil {
		return repository.Document{}, err
	}
	return v.update(arg.ID, arg.OrganizationID,
		func(d *repository.Document) bool { return slices.Contains(arg.FromStatuses, d.Status) },
		func(d *repository.Document) {
			d.Status = arg.ToStatus
			if arg.ToStatus == "cancelled" {
				d.CancelledAt = arg.At
			}
		})
}

func (v *view) ApplyInvoicePayment(ctx context.Context, arg repository.ApplyInvoicePaymentParams) (repository.Document, error) {
	if err := v.fault("ApplyInvoicePayment"); err != nil {
		return repository.Document{}, err
	}
	return v.update(arg.ID, arg.OrganizationID,
		func(d *repository.Document) bool {
			return d.DocumentType == "invoice" && (d.Status == "sent" || d.Status == "overdue")
		},
		func(d *repository.Document) {
			if d.PaidCents+arg.PaidCents >= d.TotalCents {
				d.Status = "paid"
				d.PaidAt = arg.PaidAt
			}
			d.PaidCents += arg.PaidCents
		})
}

func overdueOn(d *repository.Document, today pgtype.Date) bool {
	return d.DocumentType == "invoice" && d.Status == "sent" && !d.DeletedAt.Valid &&
		d.DueDate.Valid && d.DueDate.Time.Before(today.Time)
}

func (v *view) ListOverdueCandidates(ctx context.Context, arg repository.ListOverdueCandidatesParams) ([]repository.Document, error) {
	if err := v.fault("ListOverdueCandidates"); err != nil {
		return nil, err
	}
	var out []repository.Document
	for i := range v.st.documents {
		d := &v.st.documents[i]
		if d.OrganizationID == arg.OrganizationID && overdueOn(d, arg.Today) && !slices.Contains(arg.ExcludeIDs, d.ID) {
			out = append(out, *d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Time.Before(out[j].DueDate.Time) })
	return page(out, arg.Limit, 0), nil
}

func (v *view) MarkInvoiceOverdue(ctx context.Context, arg repository.MarkInvoiceOverdueParams) (repository.Document, error) {
	if err := v.fault("MarkInvoiceOverdue"); err != nil {
		return repository.Document{}, err
	}
	return v.update(arg.ID, arg.OrganizationID,
		func(d *repository.Document) bool { return overdueOn(d, arg.Today) },
		func(d *repository.Document) { d.Status = "overdue" })
}

func (v *view) SignQuote(ctx context.Context, arg repository.SignQuoteParams) (repository.Document, error) {
	if err := v.fault("SignQuote"); err != nil {
		return repository.Document{}, err
	}
	return v.update(arg.ID, arg.OrganizationID,
		func(d *repository.Document) bool {
			return d.DocumentType == "quote" && d.Status == "sent" && !d.SignedAt.Valid
		},
		func(d *repository.Document) {
			d.Status = "accepted"
			d.SignedAt = arg.SignedAt
			d.SignerName = arg.SignerName
			d.SignerEmail = arg.SignerEmail
			d.SignerIp = arg.SignerIp
			d.SignatureImageKey = arg.SignatureImageKey
		})
}

func (v *view) LinkConvertedInvoice(ctx context.Context, arg repository.LinkConvertedInvoiceParams) (repository.Document, error) {
	if err := v.fault("LinkConvertedInvoice"); err != nil {
		return repository.Document{}, err
	}
	return v.update(arg.ID, arg.OrganizationID,
		func(d *repository.Document) bool {
			return d.DocumentType == "quote" && d.Status == "accepted" && !d.ConvertedInvoiceID.Valid
		},
		func(d *repository.Document) { d.ConvertedInvoiceID = arg.ConvertedInvoiceID })
}

func (v *view) RecordReminderDelivery(ctx context.Context, arg repository.RecordReminderDeliveryParams) (repository.Document, error) {
	if err := v.fault("RecordReminderDelivery"); err != nil {
		return repository.Document{}, err
	}
	return v.update(arg.ID, arg.OrganizationID,
		func(d *repository.Document) bool {
			return d.ReminderCount < arg.Sequence && (d.Status == "sent" || d.Status == "overdue")
		},
		func(d *repository.Document) {
			d.ReminderCount = arg.Sequence
			d.LastReminderAt = arg.RemindedAt
		})
}

func (v *view) SoftDeleteDocument(ctx context.Context, arg repository.SoftDeleteDocumentParams) (repository.Document, error) {
	if err := v.fault("SoftDeleteDocument"); err != nil {
		return repository.Document{}, err
	}
	return v.update(arg.ID, arg.OrganizationID,
		func(d *repository.Document) bool { return d.Status == "cancelled" },
		func(d *repository.Document) { d.DeletedAt = arg.DeletedAt })
}

func (v *view) DeleteDraftDocument(ctx context.Context, arg repository.DeleteDraftDocumentParams) (int64, error) {
	if err := v.fault("DeleteDraftDocument"); err != nil {
		return 0, err
	}
	before := len(v.st.documents)
	v.st.documents = slices.DeleteFunc(v.st.documents, func(d repository.Document) bool {
		return d.ID == arg.ID && d.OrganizationID == arg.OrganizationID && !d.Number.Valid &&
			(d.Status == "draft" || d.Status == "cancelled")
	})
	removed := int64(before - len(v.st.documents))
	if removed > 0 {
		v.st.lines = slices.DeleteFunc(v.st.lines, func(l repository.DocumentLine) bool { return l.DocumentID == arg.ID })
	}
	return removed, nil
}

// document lines

func (v *view) CreateDocumentLine(ctx context.Context, arg repository.CreateDocumentLineParams) (repository.DocumentLine, error) {
	if err := v.fault("CreateDocumentLine"); err != nil {
		return repository.DocumentLine{}, err
	}
	if arg.LineTotalCents != arg.LineSubtotalCents+arg.LineVatCents {
		return repository.DocumentLine{}, checkViolation("document_lines_total_check")
	}
	for _, l := range v.st.lines {
		if l.DocumentID == arg.DocumentID && l.Position == arg.Position {
			return repository.DocumentLine{}, uniqueViolation("document_lines_document_id_position_key")
		}
	}
	l := repository.DocumentLine{
		ID:                newID(),
		DocumentID:        arg.DocumentID,
		OrganizationID:    arg.OrganizationID,
		Position:          arg.Position,
		Description:       arg.Description,
		Quantity:          arg.Quantity,
		UnitPriceCents:    arg.UnitPriceCents,
		VatRate:           arg.VatRate,
		LineSubtotalCents: arg.LineSubtotalCents,
		LineVatCents:      arg.LineVatCents,
		LineTotalCents:    arg.LineTotalCents,
	}
	v.st.lines = append(v.st.lines, l)
	return l, nil
}

func (v *view) DeleteDocumentLines(ctx context.Context, arg repository.DeleteDocumentLinesParams) error {
	if err := v.fault("DeleteDocumentLines"); err != nil {
		return err
	}
	v.st.lines = slices.DeleteFunc(v.st.lines, func(l repository.DocumentLine) bool {
		return l.DocumentID == arg.DocumentID && l.OrganizationID == arg.OrganizationID
	})
	return nil
}

func (v *view) ListDocumentLines(ctx context.Context, arg repository.ListDocumentLinesParams) ([]repository.DocumentLine, error) {
	var out []repository.DocumentLine
	for _, l := range v.st.lines {
		if l.DocumentID == arg.DocumentID && l.OrganizationID == arg.OrganizationID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// payments

func (v *view) CreatePayment(ctx context.Context, arg repository.CreatePaymentParams) (repository.Payment, error) {
	if err := v.fault("CreatePayment"); err != nil {
		return repository.Payment{}, err
	}
	for _, p := range v.st.payments {
		if p.OrganizationID == arg.OrganizationID && p.Reference == arg.Reference {
			return repository.Payment{}, errNoRows
		}
	}
	p := repository.Payment{
		ID:             newID(),
		OrganizationID: arg.OrganizationID,
		InvoiceID:      arg.InvoiceID,
		AmountCents:    arg.AmountCents,
		Currency:       arg.Currency,
		Method:         arg.Method,
		Reference:      arg.Reference,
		PaidAt:         arg.PaidAt,
		CreatedAt:      v.now(),
	}
	v.st.payments = append(v.st.payments, p)
	return p, nil
}

func (v *view) GetPaymentByReference(ctx context.Context, arg repository.GetPaymentByReferenceParams) (repository.Payment, error) {
	if err := v.fault("GetPaymentByReference"); err != nil {
		return repository.Payment{}, err
	}
	for _, p := range v.st.payments {
		if p.OrganizationID == arg.OrganizationID && p.Reference == arg.Reference {
			return p, nil
		}
	}
	return repository.Payment{}, errNoRows
}

func (v *view) ListInvoicePayments(ctx context.Context, arg repository.ListInvoicePaymentsParams) ([]repository.Payment, error) {
	var out []repository.Payment
	for _, p := range v.st.payments {
		if p.InvoiceID == arg.InvoiceID && p.OrganizationID == arg.OrganizationID {
			out = append(out, p)
		}
	}
	return out, nil
}

// notifications

func (v *view) CreateNotification(ctx context.Context, arg repository.CreateNotificationParams) (repository.Notification, error) {
	if err := v.fault("CreateNotification"); err != nil {
		return repository.Notification{}, err
	}
	for _, n := range v.st.notifications {
		if n.DedupeKey == arg.DedupeKey {
			return repository.Notification{}, errNoRows
		}
	}
	n := repository.Notification{
		ID:             newID(),
		OrganizationID: arg.OrganizationID,
		UserID:         arg.UserID,
		Type:           arg.Type,
		DocumentID:     arg.DocumentID,
		Title:          arg.Title,
		Body:           arg.Body,
		DedupeKey:      arg.DedupeKey,
		CreatedAt:      v.now(),
	}
	v.st.notifications = append(v.st.notifications, n)
	return n, nil
}

func (v *view) ListNotifications(ctx context.Context, arg repository.ListNotificationsParams) ([]repository.Notification, error) {
	var out []repository.Notification
	for i := len(v.st.notifications) - 1; i >= 0; i-- {
		n := v.st.notifications[i]
		if n.OrganizationID != arg.OrganizationID || n.UserID != arg.UserID || n.DismissedAt.Valid {
			continue
		}
		if arg.UnreadOnly && n.ReadAt.Valid {
			continue
		}
		out = append(out, n)
	}
	return page(out, arg.Limit, arg.Offset), nil
}

func (v *view) updateNotification(id, org, user pgtype.UUID, fn func(*repository.Notification)) (repository.Notification, error) {
	for i := range v.st.notifications {
		n := &v.st.notifications[i]
		if n.ID == id && n.OrganizationID == org && n.UserID == user {
			fn(n)
			return *n, nil
		}
	}
	return repository.Notification{}, errNoRows
}

func (v *view) MarkNotificationRead(ctx context.Context, arg repository.MarkNotificationReadParams) (repository.Notification, error) {
	return v.updateNotification(arg.ID, arg.OrganizationID, arg.UserID, func(n *repository.Notification) {
		if !n.ReadAt.Valid {
			n.ReadAt = v.now()
		}
	})
}

func (v *view) DismissNotification(ctx context.Context, arg repository.DismissNotificationParams) (repository.Notification, error) {
	return v.updateNotification(arg.ID, arg.OrganizationID, arg.UserID, func(n *repository.Notification) {
		if !n.DismissedAt.Valid {
			n.DismissedAt = v.now()
		}
	})
}

// jobs

func (v *view) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	if err := v.fault("EnqueueJob"); err != nil {
		return repository.Job{}, err
	}
	if arg.DedupeKey.Valid {
		for _, j := range v.st.jobs {
			if j.DedupeKey.Valid && j.DedupeKey.String == arg.DedupeKey.String {
				return repository.Job{}, errNoRows
			}
		}
	}
	scheduled := arg.ScheduledAt
	if !scheduled.Valid {
		scheduled = v.now()
	}
	j := repository.Job{
		ID:             newID(),
		OrganizationID: arg.OrganizationID,
		JobType:        arg.JobType,
		Queue:          arg.Queue,
		Payload:        slices.Clone(arg.Payload),
		DedupeKey:      arg.DedupeKey,
		Status:         "pending",
		Priority:       arg.Priority,
		MaxRetries:     arg.MaxRetries,
		ScheduledAt:    scheduled,
		TimeoutSeconds: arg.TimeoutSeconds,
		CreatedAt:      v.now(),
		UpdatedAt:      v.now(),
	}
	v.st.jobs = append(v.st.jobs, j)
	return j, nil
}

func (v *view) ClaimNextJob(ctx context.Context, arg repository.ClaimNextJobParams) (repository.Job, error) {
	if err := v.fault("ClaimNextJob"); err != nil {
		return repository.Job{}, err
	}
	now := v.store.clock()
	best := -1
	for i, j := range v.st.jobs {
		if j.Status != "pending" || j.ScheduledAt.Time.After(now) {
			continue
		}
		if arg.Queue != "" && j.Queue != arg.Queue {
			continue
		}
		if best < 0 || j.Priority > v.st.jobs[best].Priority ||
			(j.Priority == v.st.jobs[best].Priority && j.ScheduledAt.Time.Before(v.st.jobs[best].ScheduledAt.Time)) {
			best = i
		}
	}
	if best < 0 {
		return repository.Job{}, errNoRows
	}
	j := &v.st.jobs[best]
	j.Status = "processing"
	j.WorkerID = pgtype.Text{String: arg.WorkerID, Valid: true}
	j.StartedAt = v.now()
	j.UpdatedAt = v.now()
	return *j, nil
}

func (v *view) findJob(id pgtype.UUID) *repository.Job {
	for i := range v.st.jobs {
		if v.st.jobs[i].ID == id {
			return &v.st.jobs[i]
		}
	}
	return nil
}

func (v *view) CompleteJob(ctx context.Context, id pgtype.UUID) error {
	if err := v.fault("CompleteJob"); err != nil {
		return err
	}
	if j := v.findJob(id); j != nil {
		j.Status = "completed"
		j.CompletedAt = v.now()
		j.ErrorMessage = pgtype.Text{}
		j.UpdatedAt = v.now()
	}
	return nil
}

func (v *view) FailJob(ctx context.Context, arg repository.FailJobParams) (repository.Job, error) {
	if err := v.fault("FailJob"); err != nil {
		return repository.Job{}, err
	}
	j := v.findJob(arg.ID)
	if j == nil {
		return repository.Job{}, errNoRows
	}
	j.RetryCount++
	if j.RetryCount >= j.MaxRetries {
		j.Status = "failed"
	} else {
		j.Status = "pending"
		j.ScheduledAt = arg.RetryAt
	}
	j.ErrorMessage = arg.ErrorMessage
	j.WorkerID = pgtype.Text{}
	j.StartedAt = pgtype.Timestamptz{}
	j.UpdatedAt = v.now()
	return *j, nil
}

func (v *view) RequeueStaleJobs(ctx context.Context) (int64, error) {
	if err := v.fault("RequeueStaleJobs"); err != nil {
		return 0, err
	}
	now := v.store.clock()
	var n int64
	for i := range v.st.jobs {
		j := &v.st.jobs[i]
		limit := time.Duration(j.TimeoutSeconds) * 2 * time.Second
		if j.Status == "processing" && j.StartedAt.Valid && j.StartedAt.Time.Add(limit).Before(now) {
			j.Status = "pending"
			j.WorkerID = pgtype.Text{}
			j.StartedAt = pgtype.Timestamptz{}
			j.RetryCount++
			j.UpdatedAt = v.now()
			n++
		}
	}
	return n, nil
}
