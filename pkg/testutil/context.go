package testutil

import (
	"net/http"
	"time"

	"govbook/pkg/requestcontext"
)

// WithActor stamps a pre-authorized caller onto the request context,
// simulating what the auth middleware does for authenticated requests.
func WithActor(req *http.Request, userID int64, role string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.ActorInfo{
		UserID: userID,
		Role:   role,
	})
	return req.WithContext(ctx)
}

// WithFrozenTime pins the request-observed clock, keeping slot cutoff
// assertions deterministic.
func WithFrozenTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID sets a fixed correlation ID for audit assertions.
func WithRequestID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}
