package httpx

import (
	"encoding/base64"
	"fmt"
)

// BasicAuth returns a basic authentication header value of the form
// "Basic base64(username:password)".
func BasicAuth(username string, password []byte) string {
	s := fmt.Sprintf("%s:%s", username, string(password))
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(s))
}
