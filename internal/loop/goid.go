package loop

import "runtime"

// GoroutineID returns the current goroutine's ID.
//
// The ID is parsed from the "goroutine N [...]" header written by
// runtime.Stack. It is only used for ownership checks, never for
// scheduling decisions.
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
