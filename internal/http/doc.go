// Package http provides the HTTP client used to resolve albums and
// download their pages.
//
// The Client in this package handles:
//   - Browser-like User-Agent and per-host Referer headers
//   - A pooled transport shared by all concurrent downloads
//   - Bounded retry of transient failures (RetryPolicy)
//   - Classification of HTTP statuses into model error kinds
//   - Atomic file downloads
//
// # Basic Usage
//
//	client, err := http.NewClientFromSettings(settings)
//
//	// Fetch a page body
//	data, err := client.WithReferer("https://host.example/").Fetch(ctx, url)
//
//	// Download straight to disk
//	n, err := client.FetchInto(ctx, url, "/data/img/12345/1.jpg")
//
// # Error Classification
//
//	403 -> model.KindAccessDenied (with hint)
//	404 -> model.KindNotFound
//	429 -> model.KindRateLimited (with hint)
//	other non-2xx -> model.KindUnclassified
//
// Status errors are never retried. Connection failures and timeouts are
// retried per RetryPolicy and, once the budget is spent, reported as
// unclassified.
//
// # Retry Policy
//
//	policy := http.DefaultRetryPolicy() // 3 attempts, 1s..10s backoff
//	err := policy.Do(ctx, op)
package http
