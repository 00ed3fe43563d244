package time

import (
	std_time "time"

	cage_time "github.com/codeactual/dcwatch/internal/cage/time"
)

// Debounce returns a debounced version of the input function.
//
// One goroutine with a for-select loop is created for each returned function, RF, to communicate with.
// When RF is called, all it does is send the input data to the for-select in the goroutine. If a
// RF-stateful timer is nil, a timer is created with the debounce interval. But if the timer is non-nil,
// it is reset with the debounce interval. So if the RF is called twice within a total of two seconds,
// and the debounce interval is three seconds, the first RF call creates/starts the timer and the second
// call resets the timer. If the RF is no longer called and the timer is allowed to finish, the input
// function is finally invoked, with the value of the call which created the timer, and the timer is
// set back to nil.
//
// After done is closed the goroutine exits, a pending invocation is dropped, and RF calls are ignored.
//
// Origin:
//
//	https://gist.github.com/leolara/d62b87797b0ef5e418cd#gistcomment-2243168
//	https://gist.github.com/alcore
//
// Changes:
//   - Provide interface{} argument as optional approach to link an invocation to an attempted value.
//   - Resolve timer data race.
//   - Inject a mockable clock.
//   - Add done channel so long-lived callers, e.g. one debouncer per watched file, can release goroutines.
//   - Add test.
func Debounce(clock cage_time.Clock, interval std_time.Duration, f func(interface{}), done <-chan struct{}) func(interface{}) {
	// Only the loop goroutine accesses the timer.
	timerEval := make(chan interface{}, 1)

	go func() {
		var timer cage_time.Timer // after expired, f may finally run

		timerClear := make(chan struct{}, 1)

		for {
			select {
			case <-done:
				if timer != nil {
					timer.Stop()
				}
				return
			case <-timerClear:
				timer.Stop()
				timer = nil // so the next operation attempt will create a new timer
			case v := <-timerEval:
				if timer == nil {
					timer = clock.NewTimer(interval)

					// Wait in a separate goroutine so the loop can keep extending the timer.
					go func(t cage_time.Timer, v interface{}) {
						select {
						case <-t.C():
						case <-done:
							return
						}
						select {
						case timerClear <- struct{}{}:
						case <-done:
							return
						}
						f(v)
					}(timer, v)
				} else {
					// The operation attempts have not yet settled.
					timer.Reset(interval)
				}
			}
		}
	}()

	return func(v interface{}) {
		select {
		case timerEval <- v:
		case <-done:
		}
	}
}
