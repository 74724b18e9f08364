package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrlokans/offlinereader/internal/entities"
)

// ErrUnknownMutation marks an outbox item whose type this build cannot replay.
var ErrUnknownMutation = errors.New("unknown outbox mutation type")

// Remote is the server API a mutation is replayed against.
type Remote interface {
	CreateHighlight(ctx context.Context, bookID string, payload json.RawMessage) error
	UpdateHighlight(ctx context.Context, highlightID string, payload json.RawMessage) error
	DeleteHighlight(ctx context.Context, highlightID string) error
	UpdateProgress(ctx context.Context, bookID string, payload json.RawMessage) error
}

// Mutation is a decoded outbox item. The set of implementations is closed.
type Mutation interface {
	Kind() entities.OutboxType
	Apply(ctx context.Context, remote Remote) error
}

type CreateHighlight struct {
	BookID  string
	Payload json.RawMessage
}

func (CreateHighlight) Kind() entities.OutboxType { return entities.OutboxHighlightCreate }

func (m CreateHighlight) Apply(ctx context.Context, remote Remote) error {
	return remote.CreateHighlight(ctx, m.BookID, m.Payload)
}

type UpdateHighlight struct {
	HighlightID string
	Payload     json.RawMessage
}

func (UpdateHighlight) Kind() entities.OutboxType { return entities.OutboxHighlightUpdate }

func (m UpdateHighlight) Apply(ctx context.Context, remote Remote) error {
	return remote.UpdateHighlight(ctx, m.HighlightID, m.Payload)
}

type DeleteHighlight struct {
	HighlightID string
}

func (DeleteHighlight) Kind() entities.OutboxType { return entities.OutboxHighlightDelete }

func (m DeleteHighlight) Apply(ctx context.Context, remote Remote) error {
	return remote.DeleteHighlight(ctx, m.HighlightID)
}

type UpdateProgress struct {
	BookID  string
	Payload json.RawMessage
}

func (UpdateProgress) Kind() entities.OutboxType { return entities.OutboxProgressUpdate }

func (m UpdateProgress) Apply(ctx context.Context, remote Remote) error {
	return remote.UpdateProgress(ctx, m.BookID, m.Payload)
}

// Unknown is an item written by a newer build or corrupted on disk. It is
// never sent and never counted as a failure.
type Unknown struct {
	Type entities.OutboxType
}

func (m Unknown) Kind() entities.OutboxType { return m.Type }

func (m Unknown) Apply(context.Context, Remote) error {
	return fmt.Errorf("%w: %q", ErrUnknownMutation, m.Type)
}

// Decode turns a stored item into its mutation.
func Decode(item entities.OutboxItem) (Mutation, error) {
	payload := json.RawMessage(item.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	switch item.Type {
	case entities.OutboxHighlightCreate:
		return CreateHighlight{BookID: item.BookID, Payload: payload}, nil
	case entities.OutboxHighlightUpdate:
		id, err := highlightID(payload)
		if err != nil {
			return nil, err
		}
		return UpdateHighlight{HighlightID: id, Payload: payload}, nil
	case entities.OutboxHighlightDelete:
		id, err := highlightID(payload)
		if err != nil {
			return nil, err
		}
		return DeleteHighlight{HighlightID: id}, nil
	case entities.OutboxProgressUpdate:
		return UpdateProgress{BookID: item.BookID, Payload: payload}, nil
	default:
		return Unknown{Type: item.Type}, nil
	}
}

// highlightID reads highlight_id, falling back to id.
func highlightID(payload json.RawMessage) (string, error) {
	var ref struct {
		HighlightID string `json:"highlight_id"`
		ID          string `json:"id"`
	}
	if err := json.Unmarshal(payload, &ref); err != nil {
		return "", fmt.Errorf("decode highlight reference: %w", err)
	}
	if ref.HighlightID != "" {
		return ref.HighlightID, nil
	}
	if ref.ID != "" {
		return ref.ID, nil
	}
	return "", errors.New("payload has no highlight_id")
}
