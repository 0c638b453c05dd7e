package wrap

const errorWindowSize = 10

// windowLoop consumes the error branches of the piped stdout/stderr lines
// and keeps the last errorWindowSize of them, both streams interleaved in
// arrival order. When both channels have closed — the child's streams are
// done — the captured window is delivered on the handoff channel, which is
// then closed. The handoff channel is buffered, so delivery never blocks
// even if nobody ends up wanting the window.
func windowLoop(stdout, stderr <-chan string, handoff chan<- []string) {
	defer close(handoff)

	var lines []string
	push := func(line string) {
		if len(lines) >= errorWindowSize {
			lines = lines[1:]
		}
		lines = append(lines, line)
	}

	for stdout != nil || stderr != nil {
		select {
		case line, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			push(line)
		case line, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			push(line)
		}
	}

	handoff <- lines
}
