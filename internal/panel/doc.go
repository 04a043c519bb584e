// Package panel serves the browser hand controller.
//
// A small single-page UI is embedded into the binary with go:embed. It drives
// the mount through the /ajax relay endpoints, the same way the full
// planetarium UI does. A directory on disk can replace the embedded assets
// so a larger UI build can be dropped in without recompiling.
//
// Unknown paths fall back to index.html so client-side routing works.
// Every response carries Cache-Control: no-cache because the UI is usually
// replaced in place on the device.
package panel
