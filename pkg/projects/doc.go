// Package projects manages projects, the company locations they cover and
// the users assigned to them. Ticket access follows project assignment.
package projects
