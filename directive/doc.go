// Package directive finds package references embedded in script source.
//
// A reference is a line of the form
//
//	#r "nuget: Newtonsoft.Json, 13.0.3"
//
// Parse reports every well-formed reference in first-occurrence order and
// every reference that looks like one but does not have the two-field form.
// Strip removes the references so the remaining text can be compiled, keeping
// line and column positions intact.
package directive
