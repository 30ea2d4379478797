/*
Package api exposes the certification wizard and the staff back office over
HTTP.

# Routing

NewRouter registers every route on a Go 1.22 http.ServeMux using method
patterns, for example:

	POST /wizard/sessions
	PUT  /wizard/{session}/{group}
	GET  /staff/applications/{id}

Each route is wrapped with request logging and Prometheus instrumentation
labelled by its pattern. Staff routes additionally require a Keycloak bearer
token carrying one of the configured staff roles.

# Errors

Handlers return errors from the common errors package. writeError maps the
error code to an HTTP status and writes the StandardError as JSON:

	{"code":"STEP_LOCKED","message":"...","details":"...","retryable":false}

Unexpected errors become 500 INTERNAL_ERROR and are logged.
*/
package api
