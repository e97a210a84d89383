package chat

import (
	"context"
	"errors"

	"github.com/GetStream/careerchat/apperror"
)

// A Guard resolves a session or message on behalf of a user. It fails with
// the same NotFound error whether the entity is missing or owned by someone
// else, so that other users' IDs cannot be probed.
type Guard interface {
	Session(ctx context.Context, sessionID, userID string) (Session, error)
	Message(ctx context.Context, messageID, sessionID, userID string) (Message, error)
}

// StoreGuard is a Guard that checks ownership with a single owner-scoped
// lookup in the Store. An empty sessionID passed to Message matches the
// message in whichever session it belongs to.
type StoreGuard struct {
	Store Store
}

func (g StoreGuard) Session(ctx context.Context, sessionID, userID string) (Session, error) {
	if sessionID == "" || userID == "" {
		return Session{}, errSessionNotFound
	}
	s, err := g.Store.FindSession(ctx, SessionFilter{ID: sessionID, OwnerID: userID})
	if err != nil {
		return Session{}, notFoundOr(err, errSessionNotFound, "find session")
	}
	return s, nil
}

func (g StoreGuard) Message(ctx context.Context, messageID, sessionID, userID string) (Message, error) {
	if messageID == "" || userID == "" {
		return Message{}, errMessageNotFound
	}
	m, err := g.Store.FindMessage(ctx, MessageFilter{ID: messageID, SessionID: sessionID, OwnerID: userID})
	if err != nil {
		return Message{}, notFoundOr(err, errMessageNotFound, "find message")
	}
	return m, nil
}

var (
	errSessionNotFound = apperror.NotFound("session")
	errMessageNotFound = apperror.NotFound("message")
)

// notFoundOr maps ErrNoRows to nf and any other store error to an internal
// failure.
func notFoundOr(err error, nf *apperror.NotFoundError, op string) error {
	if errors.Is(err, ErrNoRows) {
		return nf
	}
	return apperror.Internal(op, err)
}
