package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Parser decodes the wire protocol into Events, tolerating event boundaries
// split across arbitrary read chunks. Bytes are buffered until a blank-line
// delimiter completes an event, then the event is flushed to the callback.
// Malformed event bodies are surfaced as error events, never as a parse
// failure; the consuming pipeline decides how to react.
type Parser struct {
	emit func(Event)
	buf  bytes.Buffer
}

// NewParser creates a Parser that invokes emit once per decoded event, in
// receive order.
func NewParser(emit func(Event)) *Parser {
	return &Parser{emit: emit}
}

// Write feeds raw bytes into the parser. Implements io.Writer so a network
// body can be copied straight in.
func (p *Parser) Write(b []byte) (int, error) {
	p.buf.Write(b)
	p.drain()
	return len(b), nil
}

// Close flushes any trailing bytes. A non-empty remainder without a closing
// delimiter is treated as a truncated event and surfaced as an error event.
func (p *Parser) Close() error {
	p.drain()
	rest := strings.TrimSpace(p.buf.String())
	p.buf.Reset()
	if rest != "" {
		p.emit(ErrorEvent(ErrorInfo{
			Type:    "enrichment_error",
			Message: "stream ended mid-event",
		}))
	}
	return nil
}

func (p *Parser) drain() {
	for {
		data := p.buf.Bytes()
		idx, skip := findEventEnd(data)
		if idx < 0 {
			return
		}
		block := string(data[:idx])
		p.buf.Next(idx + skip)
		if strings.TrimSpace(block) == "" {
			continue
		}
		p.emit(parseBlock(block))
	}
}

// findEventEnd locates the blank-line delimiter ending an event, accepting
// LF and CRLF line endings. Returns the block length and the delimiter
// width, or -1 when no complete delimiter is buffered yet.
func findEventEnd(data []byte) (idx, skip int) {
	for i := 0; i+1 < len(data); i++ {
		if data[i] != '\n' {
			continue
		}
		if data[i+1] == '\n' {
			return i, 2
		}
		if data[i+1] == '\r' && i+2 < len(data) && data[i+2] == '\n' {
			return i, 3
		}
	}
	return -1, 0
}

// parseBlock decodes a single delimited event block.
func parseBlock(block string) Event {
	var typ EventType
	var data strings.Builder

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			typ = EventType(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Unknown lines (comments, padding) are ignored.
	}

	return decodeEvent(typ, []byte(data.String()))
}

func decodeEvent(typ EventType, data []byte) Event {
	malformed := func(detail string) Event {
		return ErrorEvent(ErrorInfo{
			Type:    "enrichment_error",
			Message: "malformed " + string(typ) + " event: " + detail,
		})
	}

	switch typ {
	case EventField:
		var f FieldPayload
		if err := json.Unmarshal(data, &f); err != nil {
			return malformed(err.Error())
		}
		return Event{Type: EventField, Field: &f}
	case EventResult:
		if !json.Valid(data) {
			return malformed("invalid JSON payload")
		}
		return ResultEvent(json.RawMessage(bytes.Clone(data)))
	case EventEscalating:
		var e EscalatingPayload
		if err := json.Unmarshal(data, &e); err != nil {
			return malformed(err.Error())
		}
		return Event{Type: EventEscalating, Escalating: &e}
	case EventConfirmationRequired:
		var c ConfirmationPayload
		if err := json.Unmarshal(data, &c); err != nil {
			return malformed(err.Error())
		}
		return Event{Type: EventConfirmationRequired, Confirmation: &c}
	case EventError:
		var info ErrorInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return malformed(err.Error())
		}
		return Event{Type: EventError, Error: &info}
	case EventDone:
		return DoneEvent()
	default:
		return malformed("unknown event type")
	}
}
