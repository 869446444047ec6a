// Package session coordinates the gateway's authorization-code flow and binds
// transport sessions to the credentials that flow produces.
//
// An attempt moves through three states. Begin records the session that
// started it (INITIATED), Callback mints a fresh gateway code linked to that
// session (CODE_ISSUED) and Exchange consumes the code, identifies the
// resulting upstream credential, stores subject to token and binds the
// session (EXCHANGED).
//
// Reconcile and Cleanup keep the set of live upstream credentials consistent
// with the token store; Run drives both periodically.
package session
