package attachments

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/ids"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/storage"
)

// OwnerKind names the entity an attachment belongs to.
type OwnerKind string

const (
	OwnerTicket        OwnerKind = "ticket"
	OwnerComment       OwnerKind = "comment"
	OwnerPurchaseOrder OwnerKind = "purchase_order"
	OwnerInvoice       OwnerKind = "invoice"
)

// column returns the attachments column holding the owner id.
func (k OwnerKind) column() (string, error) {
	switch k {
	case OwnerTicket:
		return "ticket_id", nil
	case OwnerComment:
		return "comment_id", nil
	case OwnerPurchaseOrder:
		return "purchase_order_id", nil
	case OwnerInvoice:
		return "invoice_id", nil
	}
	return "", fmt.Errorf("unknown attachment owner %q", k)
}

// Owner identifies the entity an attachment belongs to.
type Owner struct {
	Kind OwnerKind
	ID   int64
}

// Attachment is stored file metadata.
type Attachment struct {
	ID         int64     `json:"id"`
	OwnerKind  OwnerKind `json:"owner_kind"`
	OwnerID    int64     `json:"owner_id"`
	Key        string    `json:"-"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	Size       int64     `json:"size"`
	UploadedBy int64     `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Querier is satisfied by *sql.DB and *sql.Tx so attachments can be saved
// inside the owner's transaction.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Service stores attachment bytes in a BlobStore and metadata in
// PostgreSQL.
type Service struct {
	db      *sql.DB
	blobs   storage.BlobStore
	metrics *observability.Metrics
}

// NewService creates an attachment service. metrics may be nil.
func NewService(db *sql.DB, blobs storage.BlobStore, metrics *observability.Metrics) *Service {
	return &Service{db: db, blobs: blobs, metrics: metrics}
}

// Key returns a fresh object key for a file owned by owner.
func Key(owner Owner, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(fileName)))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		ext = ""
	}
	return string(owner.Kind) + "/" + strconv.FormatInt(owner.ID, 10) + "/" + ids.New() + ext
}

// Save decodes upload, stores its bytes and records the metadata through q.
// When the metadata insert fails the stored object is removed.
func (s *Service) Save(ctx context.Context, q Querier, owner Owner, upload *Upload, uploadedBy int64) (*Attachment, error) {
	column, err := owner.Kind.column()
	if err != nil {
		return nil, err
	}
	raw, err := upload.Decode()
	if err != nil {
		return nil, err
	}

	a := &Attachment{
		OwnerKind:  owner.Kind,
		OwnerID:    owner.ID,
		Key:        Key(owner, upload.Name),
		FileName:   path.Base(upload.Name),
		FileType:   upload.Type,
		Size:       int64(len(raw)),
		UploadedBy: uploadedBy,
	}
	if err := s.blobs.Put(ctx, a.Key, bytes.NewReader(raw), a.FileType); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	query := `
		INSERT INTO attachments (` + column + `, object_key, file_name, file_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err = q.QueryRowContext(ctx, query, owner.ID, a.Key, a.FileName, a.FileType, a.Size, uploadedBy).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if derr := s.blobs.Delete(ctx, a.Key); derr != nil {
			observability.FromContext(ctx).WithError(derr).WithField("key", a.Key).
				Warn("failed to remove orphaned attachment")
		}
		return nil, storage.TranslateError(fmt.Errorf("failed to record attachment: %w", err), "Attachment")
	}

	if s.metrics != nil {
		s.metrics.AttachmentBytesTotal.Add(float64(a.Size))
	}
	audit.Record(ctx, audit.EventTypeDataFileUpload, audit.ResourceTypeAttachment,
		strconv.FormatInt(a.ID, 10), "file uploaded: "+a.FileName,
		&audit.ChangeDetails{After: map[string]interface{}{"owner": string(owner.Kind), "owner_id": owner.ID, "size": a.Size}})
	return a, nil
}

const attachmentSelect = `
	SELECT id,
	       CASE WHEN ticket_id IS NOT NULL THEN 'ticket'
	            WHEN comment_id IS NOT NULL THEN 'comment'
	            WHEN purchase_order_id IS NOT NULL THEN 'purchase_order'
	            ELSE 'invoice' END,
	       COALESCE(ticket_id, comment_id, purchase_order_id, invoice_id),
	       object_key, file_name, file_type, size_bytes, uploaded_by, created_at
	FROM attachments`

func scanAttachment(row interface{ Scan(...interface{}) error }) (*Attachment, error) {
	a := &Attachment{}
	var kind string
	err := row.Scan(&a.ID, &kind, &a.OwnerID, &a.Key, &a.FileName, &a.FileType, &a.Size, &a.UploadedBy, &a.CreatedAt)
	a.OwnerKind = OwnerKind(kind)
	return a, err
}

// Get returns attachment metadata.
func (s *Service) Get(ctx context.Context, id int64) (*Attachment, error) {
	a, err := scanAttachment(s.db.QueryRowContext(ctx, attachmentSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Attachment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return a, nil
}

// List returns the attachments of owner in upload order.
func (s *Service) List(ctx context.Context, owner Owner) ([]*Attachment, error) {
	column, err := owner.Kind.column()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, attachmentSelect+` WHERE `+column+` = $1 ORDER BY id ASC`, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	out := make([]*Attachment, 0)
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachments: %w", err)
	}
	return out, nil
}

// Open returns the attachment bytes. The caller closes the reader.
func (s *Service) Open(ctx context.Context, a *Attachment) (io.ReadCloser, error) {
	rc, err := s.blobs.Get(ctx, a.Key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, apperr.NotFound("Attachment file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return rc, nil
}

// ListByOwners returns the attachments of several owners of one kind keyed
// by owner id.
func (s *Service) ListByOwners(ctx context.Context, kind OwnerKind, ownerIDs []int64) (map[int64][]*Attachment, error) {
	out := make(map[int64][]*Attachment, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}
	column, err := kind.column()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, attachmentSelect+` WHERE `+column+` = ANY($1) ORDER BY id ASC`, pq.Array(ownerIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out[a.OwnerID] = append(out[a.OwnerID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachments: %w", err)
	}
	return out, nil
}

// FileData is an attachment with its bytes inlined as base64.
type FileData struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileData string `json:"file_data"`
}

// Fetch reads the attachment and returns it base64 encoded.
func (s *Service) Fetch(ctx context.Context, a *Attachment) (*FileData, error) {
	rc, err := s.Open(ctx, a)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	u, err := Encode(a.FileName, a.FileType, rc)
	if err != nil {
		return nil, err
	}
	return &FileData{ID: a.ID, FileName: a.FileName, FileType: a.FileType, FileData: u.Data}, nil
}

// ServeFile streams the attachment as a download.
func (s *Service) ServeFile(w http.ResponseWriter, r *http.Request, a *Attachment) {
	rc, err := s.Open(r.Context(), a)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", a.FileType)
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	if _, err := io.Copy(w, rc); err != nil {
		observability.FromContext(r.Context()).WithError(err).WithField("attachment_id", a.ID).
			Warn("attachment download interrupted")
	}
}
