package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/protocol"
)

// StreamError reports a generation that ended without the server's end-of-stream signal.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("generation stream broke off: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// textStream reads the chunked text body of POST /api/generate. Fragments follow read
// boundaries, never splitting a UTF-8 sequence.
type textStream struct {
	body    io.ReadCloser
	buf     []byte
	pending []byte
	err     error
}

func newTextStream(body io.ReadCloser) *textStream {
	return &textStream{body: body, buf: make([]byte, 4096)}
}

func (s *textStream) Next() (string, error) {
	for s.err == nil {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			s.pending = append(s.pending, s.buf[:n]...)
		}
		if err != nil {
			s.body.Close()
			if errors.Is(err, io.EOF) {
				s.err = io.EOF
			} else {
				s.err = &StreamError{Err: err}
			}
			// Whatever is left is delivered as-is before the terminal value.
			if len(s.pending) > 0 {
				frag := string(s.pending)
				s.pending = nil
				return frag, nil
			}
			break
		}

		complete, rest := splitCompleteUTF8(s.pending)
		if len(complete) > 0 {
			frag := string(complete)
			s.pending = append([]byte(nil), rest...)
			return frag, nil
		}
	}
	return "", s.err
}

// splitCompleteUTF8 splits b before a trailing, still incomplete UTF-8 sequence.
func splitCompleteUTF8(b []byte) (complete, rest []byte) {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if !utf8.RuneStart(b[start]) {
			continue
		}
		if utf8.FullRune(b[start:]) {
			return b, nil
		}
		return b[:start], b[start:]
	}
	return b, nil
}

// wsStream reads generation frames from GET /api/generate/ws.
type wsStream struct {
	conn *websocket.Conn
	err  error
}

func (c *Client) generateWS(ctx context.Context, spec core.PromptSpec) (core.FragmentIterator, error) {
	url := c.baseURL + "/api/generate/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeAPIError(resp)
		}
		return nil, fmt.Errorf("failed to open generation socket: %w", err)
	}
	if err := conn.WriteJSON(spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send prompt: %w", err)
	}
	return &wsStream{conn: conn}, nil
}

func (s *wsStream) Next() (string, error) {
	for s.err == nil {
		var ev protocol.StreamEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			s.finish(&StreamError{Err: err})
			break
		}
		switch ev.Type {
		case protocol.EventFragment:
			if ev.Data != "" {
				return ev.Data, nil
			}
		case protocol.EventDone:
			s.finish(io.EOF)
		case protocol.EventError:
			s.finish(&StreamError{Err: errors.New(ev.Error)})
		default:
			s.finish(&StreamError{Err: fmt.Errorf("unexpected stream event %q", ev.Type)})
		}
	}
	return "", s.err
}

func (s *wsStream) finish(err error) {
	s.err = err
	s.conn.Close()
}
