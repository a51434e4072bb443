// Package cli provides the helpdeskctl command-line interface for
// administering a helpdesk server from the terminal.
//
// # Overview
//
// Every command talks to the HTTP API through pkg/client. The signed-in
// state (token, profile, permission matrix and list markers) lives in a
// session file under the user config directory, so a login carries over
// between invocations.
//
// # Commands
//
// Session:
//
//	helpdeskctl login --email admin@example.com
//	helpdeskctl whoami
//	helpdeskctl logout
//
// Lists, with search, paging and spreadsheet export:
//
//	helpdeskctl companies --search acme --page 2
//	helpdeskctl tickets --status Open --export open.xlsx
//
// Each list row shows the actions the signed-in role may take on it.
//
// Lookups through the combobox:
//
//	helpdeskctl pick company acme
//	helpdeskctl pick user --company 3 riya --select 1
//
// Permission matrix:
//
//	helpdeskctl permissions show --company 1 --role 4
//	helpdeskctl permissions set --company 1 --role 4 --grant Tickets.create --row Invoices
//
// Reports:
//
//	helpdeskctl report --from 2025-06-01 --to 2025-06-30 --format pdf --out ./reports
//	helpdeskctl dashboard --company 3
//
// # Configuration
//
// The server URL comes from --server or HELPDESK_SERVER and the session file
// from --session-file.
package cli
