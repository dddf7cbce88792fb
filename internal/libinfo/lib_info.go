/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

// UserAgent returns the value of the User-Agent header for requests to the authorization server.
func UserAgent() string {
	return LibName + "/" + GetLibVersion()
}

// LogPrefix returns the prefix for messages of the library loggers, e.g. "[go-tokenguard/v1.0.0] ".
func LogPrefix() string {
	return "[" + LibName + "/" + GetLibVersion() + "] "
}
