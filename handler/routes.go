package handler

import (
	"net/http"

	"github.com/aio-mcp/aio-server/internal/server"
)

func NewHealthRoute(handler *HealthHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("GET /health", handler)
}

func NewRPCRoute(handler *RPCHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("POST /rpc/{file_type}/{filename}", handler)
}

func NewExecuteFileRoute(handler *ExecuteHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("POST /execute/{file_type}", http.HandlerFunc(handler.ExecuteFile))
}

func NewExecuteRoute(handler *ExecuteHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("POST /execute", http.HandlerFunc(handler.Execute))
}

func NewUploadRoute(handler *FilesHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("POST /upload/{file_type}", http.HandlerFunc(handler.Upload))
}

func NewListRoute(handler *FilesHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("GET /files", http.HandlerFunc(handler.List))
}

func NewInfoRoute(handler *FilesHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("GET /files/{file_type}/{filename}", http.HandlerFunc(handler.Info))
}

func NewDeleteRoute(handler *FilesHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("DELETE /files/{file_type}/{filename}", http.HandlerFunc(handler.Delete))
}

func NewDownloadRoute(handler *FilesHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("GET /download/{file_type}/{filename}", http.HandlerFunc(handler.Download))
}
