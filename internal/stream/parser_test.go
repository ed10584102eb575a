package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T) (func(Event), *[]Event) {
	t.Helper()
	var events []Event
	return func(ev Event) { events = append(events, ev) }, &events
}

func TestParser_SingleEvent(t *testing.T) {
	emit, events := collect(t)
	p := NewParser(emit)

	_, err := p.Write([]byte("event: field\ndata: {\"name\":\"producer\",\"value\":\"Margaux\"}\n\n"))
	require.NoError(t, err)

	require.Len(t, *events, 1)
	ev := (*events)[0]
	assert.Equal(t, EventField, ev.Type)
	require.NotNil(t, ev.Field)
	assert.Equal(t, "producer", ev.Field.Name)
	assert.JSONEq(t, `"Margaux"`, string(ev.Field.Value))
}

func TestParser_MultipleEventsOneWrite(t *testing.T) {
	emit, events := collect(t)
	p := NewParser(emit)

	wire := "event: escalating\ndata: {\"from_tier\":1,\"to_tier\":2}\n\n" +
		"event: result\ndata: {\"confidence\":0.9}\n\n" +
		"event: done\n\n"
	_, err := p.Write([]byte(wire))
	require.NoError(t, err)

	require.Len(t, *events, 3)
	assert.Equal(t, EventEscalating, (*events)[0].Type)
	assert.Equal(t, 1, (*events)[0].Escalating.FromTier)
	assert.Equal(t, 2, (*events)[0].Escalating.ToTier)
	assert.Equal(t, EventResult, (*events)[1].Type)
	assert.Equal(t, EventDone, (*events)[2].Type)
}

// Feeding the same wire bytes split at every possible offset must always
// yield the identical event sequence.
func TestParser_AnyChunkBoundary(t *testing.T) {
	wire := []byte("event: field\ndata: {\"name\":\"vintage\",\"value\":\"2015\"}\n\n" +
		"event: confirmation_required\ndata: {\"match_type\":\"fuzzy\",\"searched_for\":\"a\",\"matched_to\":\"b\",\"confidence\":0.72}\n\n" +
		"event: error\ndata: {\"type\":\"timeout\",\"message\":\"deadline\",\"retryable\":true}\n\n" +
		"event: done\n\n")

	for split := 0; split <= len(wire); split++ {
		emit, events := collect(t)
		p := NewParser(emit)

		_, err := p.Write(wire[:split])
		require.NoError(t, err)
		_, err = p.Write(wire[split:])
		require.NoError(t, err)
		require.NoError(t, p.Close())

		require.Len(t, *events, 4, "split at %d", split)
		assert.Equal(t, EventField, (*events)[0].Type, "split at %d", split)
		assert.Equal(t, EventConfirmationRequired, (*events)[1].Type, "split at %d", split)
		assert.Equal(t, EventError, (*events)[2].Type, "split at %d", split)
		assert.True(t, (*events)[2].Error.Retryable, "split at %d", split)
		assert.Equal(t, EventDone, (*events)[3].Type, "split at %d", split)
	}
}

func TestParser_CRLFFraming(t *testing.T) {
	emit, events := collect(t)
	p := NewParser(emit)

	wire := "event: field\r\ndata: {\"name\":\"producer\",\"value\":\"Ridge\"}\r\n\r\n" +
		"event: done\r\n\r\n"
	_, err := p.Write([]byte(wire))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	require.Len(t, *events, 2)
	assert.Equal(t, EventField, (*events)[0].Type)
	assert.Equal(t, "producer", (*events)[0].Field.Name)
	assert.Equal(t, EventDone, (*events)[1].Type)
}

func TestParser_MalformedPayloadBecomesErrorEvent(t *testing.T) {
	emit, events := collect(t)
	p := NewParser(emit)

	_, err := p.Write([]byte("event: field\ndata: {not json\n\n"))
	require.NoError(t, err)

	require.Len(t, *events, 1)
	ev := (*events)[0]
	assert.Equal(t, EventError, ev.Type)
	assert.Contains(t, ev.Error.Message, "malformed field event")
}

func TestParser_UnknownEventTypeBecomesErrorEvent(t *testing.T) {
	emit, events := collect(t)
	p := NewParser(emit)

	_, err := p.Write([]byte("event: telemetry\ndata: {}\n\n"))
	require.NoError(t, err)

	require.Len(t, *events, 1)
	assert.Equal(t, EventError, (*events)[0].Type)
	assert.Contains(t, (*events)[0].Error.Message, "unknown event type")
}

func TestParser_TruncatedStreamOnClose(t *testing.T) {
	emit, events := collect(t)
	p := NewParser(emit)

	_, err := p.Write([]byte("event: result\ndata: {\"wine\""))
	require.NoError(t, err)
	assert.Empty(t, *events)

	require.NoError(t, p.Close())
	require.Len(t, *events, 1)
	assert.Equal(t, EventError, (*events)[0].Type)
	assert.Contains(t, (*events)[0].Error.Message, "mid-event")
}

func TestParser_IgnoresCommentLines(t *testing.T) {
	emit, events := collect(t)
	p := NewParser(emit)

	_, err := p.Write([]byte(": keepalive\nevent: done\n\n"))
	require.NoError(t, err)

	require.Len(t, *events, 1)
	assert.Equal(t, EventDone, (*events)[0].Type)
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	in := []Event{
		FieldEvent("producer", json.RawMessage(`"Chateau Margaux"`)),
		EscalatingEvent(1, 2, "low confidence"),
		ConfirmationEvent(ConfirmationPayload{MatchType: "fuzzy", SearchedFor: "x", MatchedTo: "y", Confidence: 0.8}),
		ErrorEvent(ErrorInfo{Type: "rate_limit", Message: "429", Retryable: true, SupportRef: "WC-AB12CD34"}),
		ResultEvent(json.RawMessage(`{"confidence":0.95}`)),
		DoneEvent(),
	}

	emit, events := collect(t)
	p := NewParser(emit)
	for _, ev := range in {
		data, err := Encode(ev)
		require.NoError(t, err)
		_, err = p.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, p.Close())

	require.Len(t, *events, len(in))
	for i, got := range *events {
		assert.Equal(t, in[i].Type, got.Type, "event %d", i)
	}
	assert.Equal(t, "producer", (*events)[0].Field.Name)
	assert.Equal(t, "low confidence", (*events)[1].Escalating.Reason)
	assert.InDelta(t, 0.8, (*events)[2].Confirmation.Confidence, 1e-9)
	assert.Equal(t, "WC-AB12CD34", (*events)[3].Error.SupportRef)
	assert.JSONEq(t, `{"confidence":0.95}`, string((*events)[4].Result))
}

func TestEncode_UnknownTypeFails(t *testing.T) {
	_, err := Encode(Event{Type: EventType("bogus")})
	assert.Error(t, err)
}
