// Package esm turns ES module source into something a classic-script
// engine can link and evaluate. esbuild parses the module, reports its
// static imports, and rewrites the body into CommonJS form; the registry
// glue in registry.go then links those bodies inside a context.
package esm

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/cryguy/v8host/internal/core"
	"github.com/evanw/esbuild/pkg/api"
)

// Request is one static import declared by a module.
type Request struct {
	Specifier  string
	Attributes map[string]string
}

// Module is module source converted into a function body that expects
// (exports, require, module) bindings.
type Module struct {
	Origin   string
	Body     string
	Requests []Request
}

// moduleSourcefile names the source in the validation pass. The .mjs
// suffix makes esbuild parse it with the module goal.
const moduleSourcefile = "module.mjs"

// Transform parses module source. Syntax errors are returned as an
// *core.Exception describing a SyntaxError.
//
// Requests lists `import ... from`, `export ... from` and bare `import "x"`
// declarations in source order, once per specifier and attribute set.
// Dynamic import() and require() calls are not static imports and are
// not reported.
//
// CommonJS output cannot express top-level await. Such a module still
// compiles, with its requests, but its body throws when evaluated.
func Transform(source, origin string) (*Module, error) {
	if err := checkModule(source, origin); err != nil {
		return nil, err
	}

	result, requests := bundle(source, origin, api.FormatCommonJS)
	if len(result.Errors) > 0 {
		if !strings.HasPrefix(result.Errors[0].Text, "Top-level await") {
			return nil, syntaxError(origin, result.Errors[0])
		}
		result, requests = bundle(source, origin, api.FormatESModule)
		if len(result.Errors) > 0 {
			return nil, syntaxError(origin, result.Errors[0])
		}
		return &Module{
			Origin:   origin,
			Body:     topLevelAwaitBody(origin),
			Requests: requests,
		}, nil
	}
	if len(result.OutputFiles) == 0 {
		return nil, fmt.Errorf("transforming module %q: esbuild produced no output", origin)
	}

	return &Module{
		Origin:   origin,
		Body:     string(result.OutputFiles[0].Contents),
		Requests: requests,
	}, nil
}

// checkModule parses source with the module goal: strict mode, no
// top-level return, top-level await allowed.
func checkModule(source, origin string) error {
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: moduleSourcefile,
		Format:     api.FormatESModule,
		Target:     api.ESNext,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return syntaxError(origin, result.Errors[0])
	}
	return nil
}

// bundle runs esbuild over source with every import kept external and
// records the static imports it resolves.
func bundle(source, origin string, format api.Format) (api.BuildResult, []Request) {
	var (
		mu       sync.Mutex
		requests []Request
		seen     = make(map[string]bool)
	)

	collect := api.Plugin{
		Name: "v8host-imports",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind == api.ResolveEntryPoint {
					return api.OnResolveResult{}, nil
				}
				if args.Kind == api.ResolveJSImportStatement {
					key := requestKey(args.Path, args.With)
					mu.Lock()
					if !seen[key] {
						seen[key] = true
						requests = append(requests, Request{
							Specifier:  args.Path,
							Attributes: copyAttributes(args.With),
						})
					}
					mu.Unlock()
				}
				// Every import stays external; linking happens in the context.
				return api.OnResolveResult{Path: args.Path, External: true}, nil
			})
		},
	}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   source,
			Sourcefile: origin,
			Loader:     api.LoaderJS,
		},
		Bundle:      true,
		Write:       false,
		Format:      format,
		Platform:    api.PlatformNeutral,
		Target:      api.ESNext,
		TreeShaking: api.TreeShakingFalse,
		LogLevel:    api.LogLevelSilent,
		Plugins:     []api.Plugin{collect},
	})
	return result, requests
}

// requestKey identifies an import by specifier and attributes.
func requestKey(specifier string, with map[string]string) string {
	var b strings.Builder
	b.WriteString(specifier)
	for _, k := range slices.Sorted(maps.Keys(with)) {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(with[k])
	}
	return b.String()
}

// topLevelAwaitBody is the body of a module that uses top-level await.
func topLevelAwaitBody(origin string) string {
	msg, _ := json.Marshal("top-level await is not supported in module " + origin)
	return "throw new SyntaxError(" + string(msg) + ");"
}

// CheckScript parses classic script source and reports the first syntax
// error as an *core.Exception. esbuild reads scripts as CommonJS, so it
// lets module-only syntax and top-level return through; engines reject
// those when compiling.
func CheckScript(source, origin string) error {
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: origin,
		Target:     api.ESNext,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return syntaxError(origin, result.Errors[0])
	}
	return nil
}

// syntaxError renders an esbuild diagnostic the way engines render a
// thrown SyntaxError.
func syntaxError(origin string, msg api.Message) *core.Exception {
	text := "SyntaxError: " + msg.Text
	loc := origin
	if msg.Location != nil {
		file := origin
		if file == "" {
			file = msg.Location.File
		}
		loc = fmt.Sprintf("%s:%d:%d", file, msg.Location.Line, msg.Location.Column+1)
	}
	exc := &core.Exception{Message: text, Location: loc, StackTrace: text}
	if loc != "" {
		exc.StackTrace += "\n    at " + loc
	}
	return exc
}

func copyAttributes(with map[string]string) map[string]string {
	if len(with) == 0 {
		return nil
	}
	out := make(map[string]string, len(with))
	for k, v := range with {
		out[k] = v
	}
	return out
}
