// Package dispatch runs listener calls for the event hub.
//
// Every call is isolated: a returned error or a panic is captured in a
// Result instead of propagating, so one failing listener never prevents
// delivery to the listeners after it in the same emission. Calls run
// synchronously in the caller's goroutine; there is no worker pool because
// the hub only ever dispatches on its owner goroutine.
//
// Usage:
//
//	d := dispatch.NewSyncDispatcher()
//	res := d.Dispatch(func() error { return listener(ev) })
//	if !res.IsSuccess() {
//	    // report res.Error or res.PanicValue
//	}
//	stats := d.Stats()
package dispatch
