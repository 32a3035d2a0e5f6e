package session

import (
	"os"
	osuser "os/user"
	"strings"
)

// placeholderTitle is shown when the program has not set a title.
const placeholderTitle = "Terminal"

// localIdentity returns the current username and hostname. Either may be
// empty if the OS does not report it.
func localIdentity() (username, hostname string) {
	if u, err := osuser.Current(); err == nil {
		username = u.Username
	}
	hostname, _ = os.Hostname()
	return username, hostname
}

func stripLocalSuffix(host string) string {
	return strings.TrimSuffix(host, ".local")
}

// isLocalHost reports whether host names this machine.
func isLocalHost(host, localHost string) bool {
	if host == "" || strings.EqualFold(host, "localhost") {
		return true
	}
	return strings.EqualFold(stripLocalSuffix(host), stripLocalSuffix(localHost))
}

// deriveTitle builds the display title from the program's raw title and
// what it reported about the user and host it is running as.
//
// A remote identity is shown as a "[user@host]" prefix. The user part is
// left out when it matches the local user, and only the user is shown when
// the host is this machine.
func deriveTitle(raw, user, host, localUser, localHost string) string {
	if host != "" {
		if user == localUser {
			user = ""
		}

		var hostString string
		switch {
		case isLocalHost(host, localHost):
			hostString = user
		case user != "":
			hostString = user + "@" + stripLocalSuffix(host)
		default:
			hostString = stripLocalSuffix(host)
		}

		if hostString != "" {
			return strings.TrimSpace("[" + hostString + "] " + raw)
		}
	}

	if raw != "" {
		return raw
	}
	return placeholderTitle
}
