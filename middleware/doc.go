// Package middleware holds the portal's handler.Middleware implementations.
//
// Order matters. RequestID and Logging wrap everything; ClientRuntime must
// run before RequireRole and GuestOnly because the guards read the session it
// restores:
//
//	r.Use(
//		middleware.RequestID[*portal.Context](),
//		middleware.Logging[*portal.Context](log),
//		middleware.ClientRuntime[*portal.Context](runtimeCfg),
//	)
//	r.With(middleware.RequireRole[*portal.Context](g, account.RoleAdmin)).Get("/admin", adminHome)
package middleware
