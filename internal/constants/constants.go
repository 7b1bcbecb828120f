// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the toolkit version information
const Version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH
