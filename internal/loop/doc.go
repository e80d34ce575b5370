// Package loop provides the designated goroutine that owns event emission,
// override mutation and controller polling.
//
// A Loop is bound to exactly one goroutine (and locked to its OS thread).
// Work that originates on any other goroutine (a rendering pipeline, an
// HTTP handler, a file watcher) must be marshalled onto the loop with
// Submit or Do instead of touching the hub or override caches directly.
// Funnelling everything through one goroutine removes any chance of the
// automation runtime's lock and the simulation's locks being acquired in
// conflicting order.
//
// There are two ways to drive a loop:
//
//	// Dedicated goroutine: Run binds and serves tasks until ctx ends.
//	go l.Run(ctx)
//
//	// Embedded in a simulation loop: bind once, drain between steps.
//	l.Bind()
//	defer l.Unbind()
//	for {
//	    l.Drain()
//	    machine.Step()
//	}
package loop
