// Package audit records who changed what in the helpdesk.
//
// Handlers call Record after a successful mutation; the logger is taken from
// the request context, where Inject or Middleware put it. Events go to
// Postgres through DBLogger and to the structured log through StreamLogger,
// usually combined with a MultiLogger:
//
//	db, _ := audit.NewDBLogger(sqlDB)
//	logger := audit.NewMultiLogger(db, audit.NewStreamLogger(appLogger))
//	router.Use(audit.Inject(logger))
//
// Stored events can be searched and exported as JSON, NDJSON or CSV through
// the /audit routes.
package audit
