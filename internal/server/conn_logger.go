package server

import (
	"github.com/samujjwal/rental-sub011/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// connLogger binds the connection identity once, so gateway events carry the
// same user-id field the HTTP layer derives from request context.
func connLogger(userID uuid.UUID, clientID string) *zap.Logger {
	return zap.L().With(
		zap.String("component", "gateway"),
		zap.String(string(logger.UserIdKey), userID.String()),
		zap.String("client_id", clientID),
	)
}
