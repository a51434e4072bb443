// Package httputil provides HTTP utilities for standardized request/response handling.
//
// Every response uses the Envelope shape:
//
//	{"success": true, "message": "Company created", "data": {...}}
//	{"success": false, "message": "company not found"}
//
// Handlers return domain errors from pkg/apperr and let WriteAppError pick
// the status code:
//
//	company, err := h.service.GetCompany(r.Context(), id)
//	if err != nil {
//		httputil.WriteAppError(w, r, err)
//		return
//	}
//	httputil.WriteData(w, company)
package httputil
