package reconcile

import "errors"

// Reconciliation error classes. Callers distinguish them with errors.Is;
// the HTTP layer maps each class to its own status code.
var (
	// ErrUpstreamQuery means the terminal signalled a query failure.
	// An empty result list is not an upstream error.
	ErrUpstreamQuery = errors.New("terminal query failed")

	// ErrProfitReconciliation means a closed trade could not be matched
	// to exactly one profit-bearing deal. Profit is never defaulted to
	// zero; that would corrupt downstream accounting.
	ErrProfitReconciliation = errors.New("no profit deal matches the closing order")

	// ErrUnsupportedRecord means an order bucket carried no recognised
	// buy or sell side.
	ErrUnsupportedRecord = errors.New("order record has unsupported side")

	// ErrSessionNotInitialized means the account has no active terminal
	// session; the request is rejected immediately, never retried.
	ErrSessionNotInitialized = errors.New("terminal session not initialized for account")
)
