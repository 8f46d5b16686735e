// Package engine runs one script request end to end: package references are
// parsed and resolved, the remaining source is evaluated in the sandbox and
// the outcome is rendered as text.
//
// Run never returns an error. Every failure, from a missing parameter to a
// panicking script, is reported in the response text with a fixed prefix.
//
// Usage:
//
//	eng := engine.New(logger, res, evaluator, engine.WithDefaultTimeout(30*time.Second))
//	resp := eng.Run(ctx, engine.Request{Code: "2 + 2"})
//	fmt.Println(resp.Text) // Result: 4
package engine
