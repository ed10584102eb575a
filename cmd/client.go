package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/philhumber/wineApp-sub000/internal/stream"
)

// streamFromServer posts a request to a running serve instance and decodes
// the event stream off the wire, printing each event as it completes.
func streamFromServer(ctx context.Context, baseURL, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	url := strings.TrimSuffix(baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "call server")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return eris.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	parser := stream.NewParser(printEvent)
	if _, err := io.Copy(parser, resp.Body); err != nil {
		return eris.Wrap(err, "read stream")
	}
	return parser.Close()
}
