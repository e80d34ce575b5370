// Package automation connects automation code to the event hub.
//
// A Bridge turns the next emission of an event kind into exactly one call
// of a parked continuation. A Session groups every listener and wait one
// script created so they can all be released together.
//
// Both types are meant to be used from the hub's owner goroutine only.
package automation
