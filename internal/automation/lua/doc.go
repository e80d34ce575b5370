// Package lua runs automation scripts on gopher-lua.
//
// A Runtime owns one sandboxed State and one automation.Session. The main
// chunk and every event callback run as coroutines, so any of them may
// suspend with event.await:
//
//	-- wait for the next frame, then hold A for one step
//	local w, h, pixels = event.await("frame_produced")
//	controller.set("gc", 0, { A = true })
//
//	event.on("code_watch_hit", function(addr)
//	    log.info(string.format("hit %08x", addr))
//	    event.await("step_advanced")
//	    emulation.pause()
//	end)
//
// A bare coroutine.yield() in a runtime coroutine waits for the next
// step_advanced.
//
// Event payloads are passed as positional values:
//
//	step_advanced       (none)
//	frame_produced      width, height, pixels (RGBA string)
//	memory_watch_hit    is_write, address, value, value_text
//	code_watch_hit      address
//	interrupt_raised    cause_mask
//	interrupt_cleared   cause_mask
//
// Lua numbers are doubles, so value is exact only up to 2^53. value_text
// carries the full 64-bit value in decimal.
//
// gopher-lua states are not goroutine-safe. Every Runtime method and every
// hub emission that reaches a script must happen on the loop goroutine.
package lua
