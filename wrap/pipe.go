package wrap

import (
	"bufio"
	"io"
	"strings"

	"go.uber.org/zap"
)

// pipeLines reads the child's stream line by line, mirrors each line to the
// wrapper's matching stream, and republishes it on lines. Read or mirror
// errors stop this pipe only; the rest of the wrapper keeps running. The
// lines channel is closed when the pipe stops, telling consumers that this
// stream has ended.
//
// A final line without a trailing newline is still mirrored and published
// at end of stream.
func pipeLines(log *zap.SugaredLogger, from io.ReadCloser, to io.Writer, lines chan<- string) {
	defer close(lines)
	defer from.Close()

	reader := bufio.NewReader(from)
	for {
		raw, err := reader.ReadString('\n')
		if raw != "" {
			line := strings.TrimRight(raw, "\r\n")
			if _, werr := io.WriteString(to, line+"\n"); werr != nil {
				log.Debugf("error writing line: %s", werr)
				return
			}
			lines <- line
		}
		if err != nil {
			if err != io.EOF {
				log.Debugf("error reading line: %s", err)
			}
			return
		}
	}
}
