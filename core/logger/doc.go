// Package logger builds slog loggers and provides attribute helpers used
// across the portal.
//
//	log := logger.New(
//		logger.WithProduction("evservice"),
//		logger.WithContextExtractors(middleware.RequestIDExtractor),
//	)
//	log.InfoContext(ctx, "login succeeded", logger.UserID(id), logger.Role(role))
//
// Attribute helpers return an empty slog.Attr for empty input, which slog drops.
package logger
