// Package workflowstatus answers whether an external work item has finished.
//
// The coordinator only consumes the Source interface; the HTTP client here is
// the default implementation against a JSON run-status endpoint. Transport
// failures and timeouts surface as ErrUnavailable, which callers treat as "no
// outcome yet" rather than a phase failure.
package workflowstatus
