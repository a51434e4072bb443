// Package async runs background goroutines with panic recovery and
// structured error logging.
//
// SafeGo is for bounded tasks such as sending a password reset notice; it
// enforces a timeout and logs the returned error. Go is for long-lived loops
// such as the pool stats reporter and stops when its context is done. Both
// return a channel that is closed when the goroutine exits.
package async
