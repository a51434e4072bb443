// Package tickets implements ticket CRUD and the detail workflow: assign,
// respond, root cause, resolve, reopen and comments. Every status transition
// appends an entry to ticket_history, which is never updated.
package tickets
