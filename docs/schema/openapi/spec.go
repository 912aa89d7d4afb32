// Package openapi embeds the registry API description for runtime
// distribution. The HTTP server serves it verbatim at /openapi.yaml.
package openapi

import _ "embed"

//go:embed registry.yaml
var registrySpec []byte

// Spec returns a defensive copy of the embedded API description.
func Spec() []byte {
	return append([]byte(nil), registrySpec...)
}
