package backend

import (
	"bufio"
	"bytes"
	"io"
)

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// sseEvent is one dispatched Server-Sent Event. Name is empty for the
// default "message" type.
type sseEvent struct {
	Name string
	Data []byte
}

type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event. Multiple data lines are joined with '\n';
// a blank line dispatches. A trailing event without its blank line is still
// returned before io.EOF. Some llama.cpp builds emit bare JSON lines
// without the data: prefix; those are treated as data.
func (s *sseReader) Next() (sseEvent, error) {
	var ev sseEvent
	var data [][]byte
	size := 0
	for {
		line, err := s.r.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimRight(line, "\r\n")
			size += len(line)
			if size > maxEventSize {
				return sseEvent{}, bufio.ErrBufferFull
			}
			switch {
			case len(line) == 0:
				if len(data) > 0 || ev.Name != "" {
					ev.Data = bytes.Join(data, []byte("\n"))
					return ev, nil
				}
			case line[0] == ':':
				// comment / keep-alive
			case bytes.HasPrefix(line, []byte("event:")):
				ev.Name = string(bytes.TrimSpace(line[len("event:"):]))
			case bytes.HasPrefix(line, []byte("data:")):
				v := line[len("data:"):]
				if len(v) > 0 && v[0] == ' ' {
					v = v[1:]
				}
				data = append(data, v)
			case line[0] == '{':
				data = append(data, line)
			}
		}
		if err != nil {
			if err == io.EOF && len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return sseEvent{}, err
		}
	}
}
