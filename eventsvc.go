//go:generate go run go.uber.org/mock/mockgen -source=eventsvc.go -destination=mock_event_source_test.go -package=main
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxEventResponseBytes = 4 << 20

// EventSource produces the events of the next year for a game context.
type EventSource interface {
	FetchEvents(ctx context.Context, req EventRequest) ([]EventPayload, error)
}

type EventRequest struct {
	Context EventContext `json:"context"`
}

// EventContext is the game blob plus the current year, flattened into one object.
type EventContext struct {
	Game GameData
	Year int
}

func (c EventContext) MarshalJSON() ([]byte, error) {
	fields := c.Game.fields()
	fields["year"] = c.Year
	return json.Marshal(fields)
}

type EventPayload struct {
	Age              int              `json:"age" validate:"gte=0"`
	BriefDescription string           `json:"briefDescription"`
	Content          string           `json:"content" validate:"required"`
	Effects          map[string]int   `json:"effects,omitempty"`
	CharacterEffects *CharacterEffect `json:"characterEffects,omitempty"`
	Messages         []MessageChain   `json:"messages,omitempty"`
}

func (p EventPayload) characterName() string {
	if p.CharacterEffects == nil {
		return ""
	}
	return strings.TrimSpace(p.CharacterEffects.Character.Name)
}

type CharacterEffect struct {
	Character struct {
		Name string `json:"name"`
	} `json:"character"`
}

type MessageChain struct {
	FromCharacter string      `json:"fromCharacter"`
	MessageChain  []ChainText `json:"messageChain"`
}

type ChainText struct {
	Text string `json:"text"`
}

type eventResponse struct {
	Events []EventPayload `json:"events"`
}

// HTTPEventSource calls the remote event generator.
type HTTPEventSource struct {
	url      string
	client   *http.Client
	validate *validator.Validate
	log      *slog.Logger
}

func NewHTTPEventSource(url string, client *http.Client, log *slog.Logger) *HTTPEventSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPEventSource{
		url:      url,
		client:   client,
		validate: validator.New(),
		log:      log,
	}
}

func (c *HTTPEventSource) FetchEvents(ctx context.Context, req EventRequest) ([]EventPayload, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrEventService, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrEventService, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %w", ErrEventService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEventService, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out eventResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxEventResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrEventService, err)
	}
	for i, e := range out.Events {
		if err := c.validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: event %d: %w", ErrEventService, i, err)
		}
	}
	c.log.Debug("events fetched", "year", req.Context.Year, "events", len(out.Events))
	return out.Events, nil
}
