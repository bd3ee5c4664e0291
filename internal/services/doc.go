// Package services defines the [EnrichmentService] interface for the remote library task queue and implements it over HTTP.
//
// # Service Interface
//
// The orchestrator in package tasks only depends on [EnrichmentService], so tests and alternative transports can stand in for the
// HTTP client.
//
// # HTTP Implementation
//
// [APIService] wraps a resty client configured with the API base URL and JSON headers.
// Authentication is delegated to the [http.Client] passed in; [NewHTTPClient] builds one that attaches a bearer token through an
// oauth2 static token source.
//
// GET requests may be retried on network errors and 5xx responses. Mutating requests are never retried.
//
// The raw [APIService.Get] and [APIService.Post] helpers back the `shelfx api` debugging commands.
//
// # Error Handling
//
// Every failed call returns an [*APIError] which wraps [shared.ErrAPIRequest]:
//   - StatusCode is 0 for transport failures, the HTTP status otherwise
//   - Message is the user-facing text (taken from the "detail", "error" or "message" field of a JSON error body when present)
//
// Responses that cannot be decoded wrap [shared.ErrDecodeResponse].
package services
