// Package storage holds the persistence seams shared by the helpdesk services.
//
// # Overview
//
// Relational data (companies, projects, users, tickets, purchase orders and
// invoices) lives in PostgreSQL and is accessed by each service through
// database/sql. This package adds the two pieces those services share:
//
//   - BlobStore: byte storage for ticket attachments and PO documents.
//     Metadata rows stay in Postgres; only the content goes here.
//   - TranslateError: maps driver errors onto apperr kinds so handlers can
//     answer 404 and 409 without knowing about lib/pq.
//
// # Backends
//
// FileSystemStorage keeps blobs under a root directory and suits development
// and single-node installs:
//
//	blobs, err := storage.NewFileSystemStorage("/var/lib/helpdesk/blobs")
//
// The postgres subpackage opens the connection pool, runs the embedded
// migrations, builds the optional Redis client and provides the S3 BlobStore:
//
//	db, err := postgres.Open(ctx, cfg.Database)
//	blobs, err := postgres.NewBlobStore(ctx, cfg.Storage)
//
// # Keys
//
// Blob keys are slash separated relative paths such as
// "tickets/42/3f9c.pdf". ValidateKey rejects absolute paths and ".."
// segments before any backend touches them.
//
// # Testing
//
// Services are unit tested against go-sqlmock. The postgres subpackage has
// integration tests behind the "integration" build tag that start a real
// PostgreSQL with testcontainers.
package storage
