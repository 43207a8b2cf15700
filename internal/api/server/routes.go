package server

import (
	"net/http"

	"epubinspect/internal/api/handler"
	"epubinspect/internal/api/middleware"
)

func NewMux(startPointHandler *handler.StartPointHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/start-point", startPointHandler.HandleStartPoint)
	mux.HandleFunc("/healthz", handler.HandleHealthz)

	return middleware.CORS(mux)
}
