// Package homework talks to the homework-review API and turns review
// statuses into chat messages.
//
// Client.Poll returns the submissions updated since a cursor; Translate maps
// a submission to its localized message. Failures are *Error values tagged
// with a Kind so callers can dispatch on the failure class.
package homework
