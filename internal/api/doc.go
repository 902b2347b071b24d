// Package api provides the JSON HTTP API for the chat service.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes bypass the middleware stack via a top-level mux so they stay
// fast and unauthenticated.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — returns {"status":"ok"}
//
// Chat:
//   - POST /api/v1/chat        — synchronous chat, full response as JSON
//   - POST /api/v1/chat/stream — SSE endpoint for streaming responses
//
// Conversation state:
//   - GET  /api/v1/history — the current conversation, oldest first
//   - POST /api/v1/reset   — atomically clear the conversation
//
// Discovery:
//   - GET /api/v1/agents — available agent types with descriptions
//
// # Error Handling
//
// Error responses use an envelope format:
//
//	{"error": {"code": "...", "message": "..."}}
//
// Errors during an SSE stream are sent as events (event: error), not HTTP
// error responses, since SSE headers are already committed.
//
// # SSE Streaming
//
// Chat responses stream via Server-Sent Events with typed events:
//
//   - chunk:  incremental response text
//   - search: search progress (searching, refining, search_done)
//   - done:   final response with search metadata
//   - error:  turn-level failure; carries the partial text flag
//
// # Security
//
// The middleware stack enforces per-IP rate limiting (token bucket), CORS
// with an explicit origin allowlist, and standard security headers.
package api
