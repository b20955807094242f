// version.go
package version

import "fmt"

// AppName holds the name of the application
var AppName = "go-api-load-driver"

// Version holds the current version of the application
var Version = "0.1.0"

// UserAgentBase is the product token sent in the User-Agent header of every load request.
const UserAgentBase = "go-api-load-driver"

// GetAppName returns the name of the application
func GetAppName() string {
	return AppName
}

// GetVersion returns the current version of the application
func GetVersion() string {
	return Version
}

// GetUserAgentHeader returns the User-Agent header value, e.g. "go-api-load-driver/0.1.0".
func GetUserAgentHeader() string {
	return fmt.Sprintf("%s/%s", UserAgentBase, Version)
}
