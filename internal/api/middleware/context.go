package middleware

import (
	"context"
	"net/http"

	"github.com/timothy-han/mara/pkg/models"
)

type contextKey string

const userKey contextKey = "current_user"

func SetUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func GetUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(userKey).(*models.User)
	return user, ok
}
