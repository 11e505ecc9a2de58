package engine

import (
	"encoding/base64"
	"encoding/json"
)

// registryAuthPayload mirrors the runtime API's expected X-Registry-Auth
// body: a base64-encoded JSON object of username/password.
type registryAuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// basicAuthHeader encodes a username/token pair into the base64 JSON form
// the runtime client's ImagePullOptions.RegistryAuth expects.
func basicAuthHeader(username, token string) string {
	if username == "" && token == "" {
		return ""
	}
	data, _ := json.Marshal(registryAuthPayload{Username: username, Password: token})
	return base64.URLEncoding.EncodeToString(data)
}
