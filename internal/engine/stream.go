package engine

import "context"

// segmentFunc resolves the next accepted text segment. It returns the
// segment and whether more segments remain. Called lazily as the consumer
// pulls chunks; rejected attempts never surface a segment.
type segmentFunc func(ctx context.Context) (segment string, more bool, err error)

// Stream is a finite, non-restartable, single-pass sequence of fixed-size
// text chunks. Behavior is identical whether the text comes from cache or a
// live multi-attempt run.
type Stream struct {
	ctx       context.Context
	chunkSize int
	resolve   segmentFunc

	buf        []rune
	chunk      string
	err        error
	done       bool
	emittedAny bool
}

func newStream(ctx context.Context, chunkSize int, resolve segmentFunc) *Stream {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	return &Stream{ctx: ctx, chunkSize: chunkSize, resolve: resolve}
}

// newTextStream wraps an already-resolved full text (the cache-hit path).
func newTextStream(ctx context.Context, chunkSize int, text string) *Stream {
	delivered := false
	return newStream(ctx, chunkSize, func(context.Context) (string, bool, error) {
		if delivered {
			return "", false, nil
		}
		delivered = true
		return text, false, nil
	})
}

// Next advances to the next chunk. It returns false when the stream is
// exhausted or failed; check Err afterwards.
func (s *Stream) Next() bool {
	if s.err != nil {
		return false
	}

	for len(s.buf) == 0 && !s.done {
		segment, more, err := s.resolve(s.ctx)
		if err != nil {
			s.err = err
			return false
		}
		if !more {
			s.done = true
		}
		if segment == "" {
			continue
		}
		// Blank line between successive non-empty accepted spans.
		if s.emittedAny {
			s.buf = append(s.buf, '\n', '\n')
		}
		s.buf = append(s.buf, []rune(segment)...)
		s.emittedAny = true
	}

	if len(s.buf) == 0 {
		return false
	}

	n := min(s.chunkSize, len(s.buf))
	s.chunk = string(s.buf[:n])
	s.buf = s.buf[n:]
	return true
}

// Chunk returns the current chunk after a successful Next.
func (s *Stream) Chunk() string {
	return s.chunk
}

// Err returns the terminal error, if any.
func (s *Stream) Err() error {
	return s.err
}

// Text drains the remaining chunks into one string. Convenience for callers
// that do not need incremental consumption.
func (s *Stream) Text() (string, error) {
	var out []rune
	for s.Next() {
		out = append(out, []rune(s.chunk)...)
	}
	return string(out), s.Err()
}
