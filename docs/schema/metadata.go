// Package schema surfaces metadata from the embedded API description so
// runtime endpoints can report which contract version they serve.
package schema

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"provcore/docs/schema/openapi"
)

// Info is the identifying block of the API description.
type Info struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

type specDoc struct {
	Info Info `yaml:"info"`
}

var (
	infoOnce sync.Once
	info     Info
	infoErr  error
)

// DocumentInfo returns the title and version declared by the embedded
// API description.
func DocumentInfo() (Info, error) {
	infoOnce.Do(func() {
		var doc specDoc
		if err := yaml.Unmarshal(openapi.Spec(), &doc); err != nil {
			infoErr = fmt.Errorf("parse api description: %w", err)
			return
		}
		info = doc.Info
	})
	return info, infoErr
}

// DocumentVersion returns the version declared by the embedded API
// description, or an empty string when the document cannot be parsed.
func DocumentVersion() string {
	parsed, err := DocumentInfo()
	if err != nil {
		return ""
	}
	return parsed.Version
}
