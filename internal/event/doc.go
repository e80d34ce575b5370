// Package event provides the typed event hub that connects the simulation
// loop to automation code.
//
// The set of event kinds is closed. Each kind has one payload struct and one
// channel inside the Hub:
//
//	step_advanced       StepAdvanced{}
//	frame_produced      FrameProduced{Width, Height, Pixels}
//	memory_watch_hit    MemoryWatchHit{IsWrite, Address, Value}
//	code_watch_hit      CodeWatchHit{Address}
//	interrupt_raised    InterruptRaised{CauseMask}
//	interrupt_cleared   InterruptCleared{CauseMask}
//
// # Registration
//
// Durable listeners are registered with Register and stay until Unregister
// or Close. One-shot listeners are registered with RegisterOnce; they have no
// handle and run on the next emission only.
//
//	id, err := hub.Register(event.KindCodeWatchHit, func(ev event.Event) error {
//	    hit := ev.(event.CodeWatchHit)
//	    fmt.Printf("pc=%08x\n", hit.Address)
//	    return nil
//	})
//
//	// Typed form
//	id, err = event.On(hub, func(f event.FrameProduced) error {
//	    return nil
//	})
//
// # Emission
//
// Emit must be called on the hub's owner goroutine. The durable listener
// list and the one-shot list are both captured before the first listener
// runs, so listeners registered during an emission are first seen by the
// next emission, and listeners unregistered during an emission still run if
// they were captured. Within one emission durable listeners run first, then
// one-shot listeners, each in registration order.
//
// Calling Emit from any other goroutine is a programming error. The hub
// reports it through its FatalHandler, which by default logs at fatal level
// and exits the process.
//
// # Failures
//
// A listener that returns an error or panics is logged and counted; delivery
// continues with the next listener.
package event
