// Package registry holds the loaded provider catalog and answers read-only
// queries against it.
//
// A Registry is built exactly once from a list of raw provider definitions.
// Every definition is validated and decoded independently: a definition that
// is malformed is dropped and recorded as a Diagnostic, it never prevents the
// rest of the catalog from loading.
//
//	reg := registry.LoadEmbedded(registry.WithLogger(logger))
//	for _, d := range reg.Diagnostics() {
//	    logger.Warn("catalog diagnostic", "definition", d.Definition, "reason", d.Reason)
//	}
//
//	if p, ok := reg.ByID("anthropic"); ok {
//	    fmt.Println(p.Name, len(p.Models))
//	}
//
// The catalog is published as an immutable snapshot. All query methods are
// safe for concurrent use, never block each other, and return deep copies so
// callers can not reach into the shared catalog.
package registry
