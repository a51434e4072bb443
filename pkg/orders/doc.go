// Package orders manages purchase orders and the invoices raised against
// them. Each purchase order and invoice may carry one current file, kept in
// the attachments store.
package orders
