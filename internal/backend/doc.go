// Package backend abstracts the completion servers inferd can talk to.
//
// Every variant speaks the OpenAI-style streaming chat endpoint
// (/v1/chat/completions over Server-Sent Events) and differs only in how
// the base URL is obtained, how requests are authenticated, and how models
// are listed:
//
//   - backend.go: Backend interface, request/fragment/summary types, New.
//   - client.go: the shared HTTP client, interrupt handling, model listing.
//   - stream.go: the single streaming decode path.
//   - sse.go: Server-Sent Events reader.
//   - local.go: Local, which runs the server through a supervisor.
//   - remote.go: RemoteLlama, OpenAI and Ollama.
//   - errors.go: NetworkError, ProtocolDecodeError, ErrInterrupted.
package backend
