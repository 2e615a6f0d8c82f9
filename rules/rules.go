//go:build ruleguard

// Package gorules contains project lint rules for golangci-lint via
// ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the Add/Done goroutine pattern that wg.Go replaces.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("Use $wg.Go(func() { ... }) instead of go func() { defer $wg.Done(); ... }()").
		Suggest("$wg.Go(func() { $*_ })")
}

// InjectedClock keeps the daily selector on its injected clock, so a test
// can pin the calendar day.
func InjectedClock(m dsl.Matcher) {
	m.Match(`time.Now()`).
		Where(m.File().PkgPath.Matches(`/internal/daily$`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("daily must read time through its injected clock, not time.Now()")
}

// SharedHTTPClient keeps outgoing requests on the configured client, which
// carries the timeout, User-Agent and test transport.
func SharedHTTPClient(m dsl.Matcher) {
	m.Match(`http.Get($*_)`, `http.Post($*_)`, `http.DefaultClient`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report("use internal/httpclient instead of the default net/http client")
}

// StructuredLogging rejects the standard log package outside main.
func StructuredLogging(m dsl.Matcher) {
	m.Import("log")
	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Fatalf($*_)`, `log.Fatal($*_)`).
		Report("use internal/logger for structured logging")
}

// TestContext prefers t.Context() over a background context in tests.
func TestContext(m dsl.Matcher) {
	m.Match(`context.Background()`).
		Where(m.File().Name.Matches(`_test\.go$`) && m.File().Imports("testing")).
		Report("prefer t.Context() in tests")
}
