// Package identity derives the deterministic resource names that make subscribe idempotent.
//
// The backend upserts Connections and Destinations by name, so the same
// (channel, url) pair must always map to the same name, from any process.
package identity

import "encoding/base64"

// Name prefixes for derived resources.
const (
	ConnectionPrefix  = "conn"
	DestinationPrefix = "dst"
)

// DeriveName returns "{prefix}_{channelName}_{token}" where token is the URL-safe,
// unpadded base64 encoding of url.
func DeriveName(prefix, channelName, url string) string {
	return prefix + "_" + channelName + "_" + base64.RawURLEncoding.EncodeToString([]byte(url))
}

// ConnectionName is the connection name for a subscription of url to channelName.
func ConnectionName(channelName, url string) string {
	return DeriveName(ConnectionPrefix, channelName, url)
}

// DestinationName is the destination name for a subscription of url to channelName.
func DestinationName(channelName, url string) string {
	return DeriveName(DestinationPrefix, channelName, url)
}
