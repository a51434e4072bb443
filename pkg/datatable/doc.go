// Package datatable holds the view-independent state of an admin list:
// free-text search over every field, export of the visible rows, per-row
// action gating and pagination with remembered position.
package datatable
