package syncengine

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ProtocolVersion is the wire-format version of the shard protocol this
// client speaks, sent on every request as X-Sync-Protocol-Version and
// checked against whatever the server echoes back. It is a major-version
// gate only (spec has no plan for staged minor rollouts, unlike the
// teacher's own daemon/CLI checkVersionCompatibility).
const ProtocolVersion = "v1.0.0"

// ErrProtocolIncompatible is returned when the server's protocol major
// version doesn't match this client's — the shard encoding itself may have
// changed, so retrying blindly would just corrupt state.
var ErrProtocolIncompatible = errors.New("syncengine: sync protocol version incompatible with server")

// checkProtocolCompatibility compares this client's ProtocolVersion against
// serverVersion, the value of the server's X-Sync-Protocol-Version response
// header. An empty or non-semver serverVersion is treated as "server predates
// this header" and allowed through, matching the teacher's "allow empty
// client version" leniency for old peers.
func checkProtocolCompatibility(serverVersion string) error {
	if serverVersion == "" {
		return nil
	}
	serverVer := serverVersion
	if !strings.HasPrefix(serverVer, "v") {
		serverVer = "v" + serverVer
	}
	if !semver.IsValid(serverVer) || !semver.IsValid(ProtocolVersion) {
		return nil
	}
	if semver.Major(serverVer) != semver.Major(ProtocolVersion) {
		return fmt.Errorf("%w: client speaks %s, server speaks %s", ErrProtocolIncompatible, ProtocolVersion, serverVersion)
	}
	return nil
}
