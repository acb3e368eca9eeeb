package bridgeinfo

// Metadata captures static identifiers for the bridge. Centralising the
// values keeps logs and the serve-mode handshake consistent.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	Version     string
}

// Info describes the current bridge build.
var Info = Metadata{
	Name:        "ScoreBridge",
	BinaryName:  "scorebridge",
	Slug:        "scorebridge",
	Description: "Streaming bridge between per-frame acoustic score streams and an incremental speech search engine.",
	Version:     "0.1.0",
}

// UserAgent returns the identifier advertised on network handshakes.
func UserAgent() string {
	return Info.Slug + "/" + Info.Version
}
