// ABOUTME: Version information for MicTroll
// ABOUTME: Shared constants reported by the binaries and the remote server
package version

const (
	// Version is the current release
	Version = "0.3.0"

	// Product is the user-facing name
	Product = "MicTroll"

	// Manufacturer identifies the publisher
	Manufacturer = "MicTroll Project"
)
