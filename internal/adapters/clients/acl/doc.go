// Package acl keeps Discord's wire format out of the quote book.
//
// [DiscordPublisher] implements ports.LeaderboardPublisher and
// ports.Announcer on top of the resilient clients.Client. Discord users,
// messages and error bodies are decoded here and never leave the package;
// callers only see ports.PublishedMessage values and domain errors.
//
// # Error mapping
//
// Discord JSON error codes are consulted before the HTTP status:
//   - Unknown Message or Unknown Channel, or any 404 → [domain.ErrNotFound]
//   - 400/422 → [domain.ErrValidation]
//   - Missing Access, Missing Permissions, pin limit, 401/403, 429, 5xx and
//     transport failures → [domain.ErrUnavailable]
//
// [clients.ErrCircuitOpen] and [clients.ErrMaxRetriesExceeded] also become
// [domain.ErrUnavailable], naming the operation that was attempted.
package acl
