package httpapi

import "net/http"

// registerStubs reserves the file/directory/bulk routes that have no
// handler yet: the catalog side (Rename, MoveOne, MoveMany, MovePrefix,
// DeleteOne, DeleteMany, DeletePrefix, ListByPrefix) is contract-ready,
// only the HTTP wiring is missing.
func registerStubs(mux interface{ MethodFunc(method, pattern string, h http.HandlerFunc) }) {
	mux.MethodFunc(http.MethodPatch, "/file/{id}", notImplemented)
	mux.MethodFunc(http.MethodPost, "/file/{id}/move", notImplemented)
	mux.MethodFunc(http.MethodPost, "/file/{id}/copy", notImplemented)
	mux.MethodFunc(http.MethodDelete, "/file/{id}", notImplemented)

	mux.MethodFunc(http.MethodPost, "/directory/create/{path}", notImplemented)
	mux.MethodFunc(http.MethodDelete, "/directory/{path}", notImplemented)
	mux.MethodFunc(http.MethodPatch, "/directory/{path}", notImplemented)
	mux.MethodFunc(http.MethodPost, "/directory/copy/{path}", notImplemented)

	mux.MethodFunc(http.MethodGet, "/list/{path}", notImplemented)

	mux.MethodFunc(http.MethodPost, "/bulk/copy", notImplemented)
	mux.MethodFunc(http.MethodPost, "/bulk/move", notImplemented)
	mux.MethodFunc(http.MethodDelete, "/bulk", notImplemented)
}
