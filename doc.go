// Package v8host embeds a JavaScript engine in a Go process.
//
// It initializes the engine platform once per process, creates isolates
// and contexts, and drives the compile → run pipeline for classic scripts
// and the compile → instantiate → evaluate pipeline for ES modules. Every
// thrown JavaScript value comes back as an explicit Result instead of a
// panic or a Go error:
//
//	v8host.Init(os.Args[0])
//	iso := v8host.NewIsolate()
//	defer iso.Dispose()
//	ctx := v8host.NewContext(iso)
//
//	compiled := iso.CompileScript(ctx, v8host.NewOrigin("main.js"), "1 + 1")
//	if !compiled.OK() {
//		msg, _ := compiled.Exception().ToString(ctx)
//		log.Fatal(msg)
//	}
//	out := iso.RunScript(ctx, compiled.Value())
//
// The engine is chosen at build time: the default build uses QuickJS
// (modernc.org/quickjs, no cgo); building with -tags v8 uses V8 through
// github.com/tommie/v8go.
package v8host
