package wrap

// unbounded returns a channel pair connected by a pump goroutine with an
// elastic buffer in between: sends on in never block, no matter how slowly
// out is drained. Closing in drains the buffer to out and then closes out.
//
// The line pipers and the tee publish through unbounded queues so that a
// slow telemetry consumer can never stall the child's output passthrough.
func unbounded[T any]() (chan<- T, <-chan T) {
	in := make(chan T)
	out := make(chan T)

	go func() {
		defer close(out)
		var buf []T
		for {
			if len(buf) == 0 {
				item, ok := <-in
				if !ok {
					return
				}
				buf = append(buf, item)
			}
			select {
			case item, ok := <-in:
				if !ok {
					// drain what is buffered, then finish
					for _, item := range buf {
						out <- item
					}
					return
				}
				buf = append(buf, item)
			case out <- buf[0]:
				buf = buf[1:]
			}
		}
	}()

	return in, out
}

// tee duplicates one stream of items into two. A single forwarding loop
// feeds both outputs through unbounded queues, so every item reaches both
// outputs in input order, and both outputs close together when the input
// closes. One output cannot end while the other keeps receiving.
func tee[T any](in <-chan T) (<-chan T, <-chan T) {
	firstIn, firstOut := unbounded[T]()
	secondIn, secondOut := unbounded[T]()

	go func() {
		defer close(firstIn)
		defer close(secondIn)
		for item := range in {
			firstIn <- item
			secondIn <- item
		}
	}()

	return firstOut, secondOut
}
