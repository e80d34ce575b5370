// Package sim drives a Machine one step at a time on the loop goroutine
// and reports what happened through the event hub.
//
// Each step the Driver:
//
//  1. runs the tasks queued on the loop,
//  2. applies a pending reset,
//  3. steps the machine, which polls its pads through the override registry,
//  4. emits code and memory watch hits, interrupt changes and, when anyone
//     listens, the finished frame,
//  5. emits step_advanced.
//
// CounterMachine is a small deterministic machine used by the CLI and by
// tests. It has no relation to any real hardware.
package sim
