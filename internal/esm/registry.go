package esm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RegistryGlobal is the non-enumerable global the registry lives under.
const RegistryGlobal = "__v8host_modules"

// RegistryJS installs the per-context module registry. define() stores a
// linked module body; evaluate() runs a module once, after its
// dependencies in import order, and caches either its exports or the
// value it threw.
const RegistryJS = `
(function() {
	if (globalThis.__v8host_modules) return;
	var defs = {};
	var records = {};

	function load(id) {
		var rec = records[id];
		if (rec) {
			if (rec.threw) throw rec.error;
			return rec.module.exports;
		}
		var def = defs[id];
		if (!def) {
			throw new Error('module ' + id + ' is not instantiated in this context');
		}
		rec = records[id] = { module: { exports: {} }, threw: false, error: undefined };
		try {
			for (var i = 0; i < def.links.length; i++) {
				load(def.links[i][1]);
			}
			var require = function(specifier) {
				for (var j = 0; j < def.links.length; j++) {
					if (def.links[j][0] === specifier) return load(def.links[j][1]);
				}
				throw new Error("Cannot find module '" + specifier + "'");
			};
			def.fn.call(undefined, rec.module.exports, require, rec.module);
		} catch (e) {
			rec.threw = true;
			rec.error = e;
			throw e;
		}
		return rec.module.exports;
	}

	Object.defineProperty(globalThis, '__v8host_modules', {
		value: {
			define: function(id, links, fn) {
				defs[id] = { links: links, fn: fn };
			},
			evaluate: load,
			states: function(ids) {
				return ids.map(function(id) {
					var rec = records[id];
					if (!rec) return 'linked';
					return rec.threw ? 'errored' : 'evaluated';
				}).join(',');
			},
		},
		enumerable: false,
		configurable: false,
		writable: false,
	});
})();
`

// Link binds one import specifier of a module to the id of the module it
// resolved to.
type Link struct {
	Specifier string
	ID        int64
}

// DefineSource returns the script that registers a module body under id
// with its resolved links.
func DefineSource(id int64, links []Link, body string) (string, error) {
	pairs := make([][2]any, len(links))
	for i, l := range links {
		pairs[i] = [2]any{l.Specifier, l.ID}
	}
	encoded, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encoding links of module %d: %w", id, err)
	}
	return fmt.Sprintf("globalThis.%s.define(%d, %s, function (exports, require, module) {\"use strict\";%s\n});",
		RegistryGlobal, id, encoded, body), nil
}

// EvaluateSource returns the script that evaluates module id and yields
// its namespace object.
func EvaluateSource(id int64) string {
	return fmt.Sprintf("globalThis.%s.evaluate(%d)", RegistryGlobal, id)
}

// Module states reported by StatesSource.
const (
	StateLinked    = "linked"
	StateEvaluated = "evaluated"
	StateErrored   = "errored"
)

// StatesSource returns the script that reports the evaluation state of
// each id as a comma-separated list, in the order given.
func StatesSource(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("globalThis.%s.states([%s])", RegistryGlobal, strings.Join(parts, ","))
}

// ParseStates splits the output of StatesSource.
func ParseStates(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
