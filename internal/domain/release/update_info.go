package release

// UpdateInfo describes the latest self-update advertised by the metadata endpoint.
type UpdateInfo struct {
	// Title is the headline shown to the user.
	Title string
	// Content is the release description shown to the user.
	Content string
	// VersionName is the dotted version of the advertised release.
	VersionName string
	// DownloadURL is where the update package is fetched from.
	DownloadURL string
	// DigestHex is the expected hex digest of the update package.
	DigestHex string
}

// EmptyUpdateInfo is the sentinel for "no usable update metadata".
//
//nolint:gochecknoglobals // Sentinel value compared against by callers.
var EmptyUpdateInfo = UpdateInfo{}

// IsEmpty reports whether info is the "no update" sentinel.
func (info UpdateInfo) IsEmpty() bool {
	return info == EmptyUpdateInfo
}
