// Package companies manages customer companies, their addresses (locations)
// and the undirected links between companies.
//
// A company marked internal is the helpdesk operator itself; its users see
// every company. Users of other companies see their own company and the
// companies linked to it.
package companies
