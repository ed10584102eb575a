package stream

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// Encode renders an event into its wire representation.
func Encode(ev Event) ([]byte, error) {
	var payload any
	switch ev.Type {
	case EventField:
		payload = ev.Field
	case EventResult:
		payload = ev.Result
	case EventEscalating:
		payload = ev.Escalating
	case EventConfirmationRequired:
		payload = ev.Confirmation
	case EventError:
		payload = ev.Error
	case EventDone:
		payload = nil
	default:
		return nil, eris.Errorf("stream: encode unknown event type %q", ev.Type)
	}

	out := []byte("event: " + string(ev.Type) + "\n")
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, eris.Wrapf(err, "stream: marshal %s payload", ev.Type)
		}
		out = append(out, []byte("data: ")...)
		out = append(out, data...)
		out = append(out, '\n')
	}
	return append(out, '\n'), nil
}

// Flusher is satisfied by http.ResponseWriter implementations that support
// incremental delivery.
type Flusher interface {
	Flush()
}

// Writer encodes events onto an io.Writer, flushing after each event when
// the writer supports it. Used by the HTTP streaming surface.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for event output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send encodes and writes one event.
func (sw *Writer) Send(ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if _, err := sw.w.Write(data); err != nil {
		return eris.Wrap(err, "stream: write event")
	}
	if f, ok := sw.w.(Flusher); ok {
		f.Flush()
	}
	return nil
}
