package main

// General API documentation for swaggo. Regenerate with
// `swag init -g cmd/inferd/docs.go -o docs`.
//
// @title           inferd API
// @version         1.0
// @description     HTTP API for local LLM inference: streamed chat turns against a supervised llama.cpp server or a remote backend.
//
// @contact.name   inferd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
