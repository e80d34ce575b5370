// Package override layers scripted controller input on top of polled
// controller values.
//
// A Cache holds override entries keyed by (controller index, ControlKey).
// Each entry moves through three states:
//
//	Absent  --Set-->  Armed  --Resolve-->  Consumed
//
// An OnNextPoll entry is deleted by the Resolve that consumes it. An
// OnNextStepBoundary entry keeps answering every Resolve until the next
// step boundary, where it is deleted only if it was consumed. Every Resolve
// records the value it returned, whether overridden or not, so Get reports
// what the controller actually saw.
//
// Controllers reach a cache through a Registry keyed by ControllerID. A Pad
// polls its RawReader and passes each value through whatever Source is
// installed for its id. Bind installs a cache for a range of controllers
// and attaches it to the hub's step boundary; Unbind undoes both.
//
// All mutation happens on the owner goroutine.
package override
