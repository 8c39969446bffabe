// Package server runs the portal's HTTP handler with graceful shutdown.
//
//	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	return srv.Run(ctx, handler)
//
// Run blocks until ctx is cancelled, then drains in-flight requests within the
// shutdown timeout. TLS is enabled when both certificate files are configured.
package server
