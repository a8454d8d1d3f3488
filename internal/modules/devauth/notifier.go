package devauth

import (
	"context"
	"log/slog"

	ctxlogger "github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/logger/context"
)

// LogNotifier writes verification codes to the request logger instead of
// mailing them
type LogNotifier struct{}

func (LogNotifier) SendVerification(ctx context.Context, email, code string) error {
	ctxlogger.GetLogger(ctx).LogAttrs(ctx, slog.LevelInfo, "VERIFICATION_CODE_ISSUED",
		slog.String("email", email),
		slog.String("code", code))
	return nil
}
