// Package report renders resolution failures and evaluation outcomes as the
// text returned to callers.
//
// Every failure category starts with a fixed header, so callers can match
// outcomes by prefix without parsing:
//
//	NuGet Package Resolution Error(s):
//	Compilation Error(s):
//	Runtime Error: <type>
//	Error: Script execution timed out after <n> seconds.
//
// Usage:
//
//	text := report.Outcome(outcome)
package report
