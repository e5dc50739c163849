package version

// Version is the current version of PeerDrop.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/jhon1466/PeerDrop/internal/version.Version=v1.0.0'"
var Version = "dev"
