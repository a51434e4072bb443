// Package attachments stores uploaded files for tickets, comments, purchase
// orders and invoices.
//
// Clients send files inline as {name, type, data} with base64 data. The
// decoded bytes go to a storage.BlobStore under a per-owner key prefix and
// the metadata goes to the attachments table.
package attachments
