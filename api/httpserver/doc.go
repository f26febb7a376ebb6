// Package httpserver provides the HTTP server shared by the board binaries.
//
// BaseServer mounts the routes of every RouteRegistrar behind request id,
// real ip, panic recovery and structured request logging, and adds:
//
//   - /livez: the process is up
//   - /readyz: the server accepts traffic and the optional ReadinessCheck passes
//   - /drain, /undrain: toggle readiness ahead of a restart
//   - /debug: pprof, when EnablePprof is set
//
// # Usage
//
//	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
//	    ListenAddr: ":8080",
//	    Log:        log,
//	}, boardService)
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
