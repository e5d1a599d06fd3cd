// Package checkpoint keeps a small JSON sidecar next to a download so an
// interrupted run can be resumed.
//
// The sidecar records the destination, the number of identifiers, the
// offset of the next unsubmitted identifier and how many rows had been
// persisted. It is written every time the downloader persists results.
//
// Sidecars live in platform-specific data directories:
//   - Linux: $XDG_DATA_HOME/engagedl/checkpoints/ or ~/.local/share/engagedl/checkpoints/
//   - macOS: ~/Library/Application Support/engagedl/checkpoints/
//   - Windows: %APPDATA%/engagedl/checkpoints/
//
// Files are replaced atomically through a temporary file and rename.
package checkpoint
