// Package api serves the HTTP surface of offload over chi.
//
// Job endpoints submit work and report status without waiting for it:
//
//	GET /process-dataset/?size=100
//	GET /generate-report/?type=sales&user_id=1
//	GET /task-status/{id}/
//
// Cache endpoints show the two caching styles side by side. The function,
// query and template endpoints go through a cache.Accessor; the full-view
// endpoint is wrapped by httpcache. GET or POST /cache/clear/ empties the
// whole cache namespace.
//
// Trailing slashes are optional on every route.
package api
