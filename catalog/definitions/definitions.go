// Package definitions holds the provider definitions compiled into aviary.
//
// Each provider is one JSON document under configs/. The table below fixes the
// order in which they are loaded, which is also the order in which the catalog
// is served.
package definitions

import (
	"embed"
	"path"

	"github.com/casualjim/aviary/pkg/stdx"
)

//go:embed configs/*.json
var configs embed.FS

// Definition is a named, raw provider definition.
type Definition struct {
	// Name identifies the definition in diagnostics; it is normally the provider id.
	Name string
	// Raw is the JSON document.
	Raw []byte
}

var names = []string{
	"anthropic",
	"openai",
	"gemini",
	"azure",
	"bedrock",
	"vertexai",
	"xai",
	"zai",
	"groq",
	"openrouter",
	"cerebras",
	"venice",
	"chutes",
	"deepseek",
	"huggingface",
	"aihubmix",
}

var embedded = func() []Definition {
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, Definition{
			Name: name,
			Raw:  stdx.Must1(configs.ReadFile(path.Join("configs", name+".json"))),
		})
	}
	return defs
}()

// All returns the embedded definitions in declaration order. The returned
// slice and byte buffers belong to the caller.
func All() []Definition {
	out := make([]Definition, len(embedded))
	for i, d := range embedded {
		out[i] = Definition{Name: d.Name, Raw: append([]byte(nil), d.Raw...)}
	}
	return out
}

// Names returns the names of the embedded definitions in declaration order.
func Names() []string {
	return append([]string(nil), names...)
}
