// Package validation wraps go-playground/validator with the field rules used
// by the helpdesk request types.
//
// Custom tags:
//
//	notblank    non-empty after trimming whitespace
//	po_number   uppercase letters and digits only
//	amount      decimal with at most two fractional digits
//	po_comment  letters, digits, spaces, @ and new lines
//
// Struct returns an *apperr.Error of kind validation whose Fields map is keyed
// by the json field name, so handlers can write it straight back to the
// client.
package validation
