// Package interfaces documents the core abstractions used throughout the application.
//
// Consumers define the narrow interface they need next to the code that uses
// it; this package only records which concrete type satisfies which interface.
//
// # Interface Categories
//
// ## Persistent Store
//
// *database.Database implements every store interface:
//
//   - maintenance.Store: listing books and the cascading delete steps
//   - download.Store: writing books, chapters and images
//   - outbox.Store: the mutation queue
//   - offline.Store: reading cached content and touching books
//   - settingsstore.Settings: key/value settings
//   - http.BookStore, http.OutboxLister, http.HealthStore: the control API
//
// ## Remote Server
//
// *remote.Client is both the download.Fetcher and the outbox.Remote.
//
// ## Cache Services
//
//   - download.Maintainer, scheduler.Cleaner: *maintenance.Engine
//   - tasks.Downloader, http.Downloader: *download.Orchestrator
//   - tasks.Flusher, scheduler.Flusher, http.OutboxService: *outbox.Manager
//   - offline.AssetCache: *assets.Cache
//
// # Adding a New Mutation Type
//
// To queue a new kind of change for the server:
//
//  1. Add the OutboxType constant in internal/entities/outbox.go and list it in Valid.
//
//  2. Add the variant in internal/outbox/mutation.go and decode it:
//
//     type CreateBookmark struct {
//         BookID  string
//         Payload json.RawMessage
//     }
//
//     func (CreateBookmark) Kind() entities.OutboxType { return entities.OutboxBookmarkCreate }
//
//     func (m CreateBookmark) Apply(ctx context.Context, remote Remote) error {
//         return remote.CreateBookmark(ctx, m.BookID, m.Payload)
//     }
//
//  3. Add the call to outbox.Remote and implement it on *remote.Client.
//
// Items of a type an older binary does not know are skipped, not dropped.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
