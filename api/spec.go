// Package api carries the OpenAPI description of the HTTP query API.
package api

import _ "embed"

// OpenAPI is the OpenAPI 3 document served and enforced by the server
//
//go:embed openapi.yaml
var OpenAPI []byte
