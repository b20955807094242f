// proxy/auth.go

package proxy

import (
	"encoding/base64"
	"net/url"
)

func basicAuth(user *url.Userinfo) string {
	password, _ := user.Password()
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user.Username()+":"+password))
}
