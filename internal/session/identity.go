package session

import "context"

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by the session gate. ok is false
// when the request never passed the gate or carried no valid session.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID <= 0 {
		return Identity{}, false
	}
	return id, true
}
