// Package firmware acquires the firmware bundle: it downloads the archive into
// the firmware directory with foreground progress and extracts it in place.
//
// A bundle counts as installed when the archive exists and the registered
// marker directory inside the extraction root is non-empty.
package firmware
