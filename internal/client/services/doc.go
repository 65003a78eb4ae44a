// Package services contains the sync engine and the local mutation entry
// points of the FridgeKeeper client.
//
//   - PushAgent replays pending local creates and deletes against the API.
//   - DeltaAgent pulls remote changes since the stored watermarks.
//   - Engine runs one sync pass: push, then pull.
//   - Inventory is what the UI calls: add, delete, list and observe.
//
// Nothing here returns a network failure to the UI. Local writes always
// succeed offline and the record's sync state carries the pending work.
package services
