package docfill

import (
	"embed"
	"io/fs"
)

//go:embed examples/templates
var exampleTemplates embed.FS

// ExampleTemplates exposes the bundled sample templates (a markdown letter,
// an HTML invoice and a plain text memo) rooted at the templates directory.
// Pass it to store.WithFileSystem to try the pipeline without any files on
// disk.
func ExampleTemplates() fs.FS {
	sub, err := fs.Sub(exampleTemplates, "examples/templates")
	if err != nil {
		return exampleTemplates
	}
	return sub
}
