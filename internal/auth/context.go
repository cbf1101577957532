package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

const campusIDKey contextKey = "campusID"

// ContextWithCampusID returns a new context that carries the authenticated campus scope.
func ContextWithCampusID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, campusIDKey, id)
}

// CampusIDFromContext retrieves the authenticated campus scope from the context, if any.
func CampusIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(campusIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// EnforceCampusScope ensures the provided campus matches the authenticated scope when present.
func EnforceCampusScope(ctx context.Context, campusID uuid.UUID) error {
	if campusID == uuid.Nil {
		return fmt.Errorf("campusId is required")
	}
	scopedID, ok := CampusIDFromContext(ctx)
	if !ok {
		return nil
	}
	if scopedID != campusID {
		return fmt.Errorf("campusId %s does not match authenticated scope", campusID)
	}
	return nil
}
