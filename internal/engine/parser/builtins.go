package parser

import "strings"

// Globals that never need an import.
var builtinNames = setOf(
	// language
	"undefined", "NaN", "Infinity", "globalThis", "arguments", "eval",
	"isFinite", "isNaN", "parseFloat", "parseInt", "decodeURI", "decodeURIComponent",
	"encodeURI", "encodeURIComponent", "escape", "unescape",
	"Object", "Function", "Boolean", "Symbol", "Error", "AggregateError", "EvalError",
	"RangeError", "ReferenceError", "SyntaxError", "TypeError", "URIError",
	"Number", "BigInt", "Math", "Date", "String", "RegExp", "Array", "Int8Array",
	"Uint8Array", "Uint8ClampedArray", "Int16Array", "Uint16Array", "Int32Array",
	"Uint32Array", "Float32Array", "Float64Array", "BigInt64Array", "BigUint64Array",
	"Map", "Set", "WeakMap", "WeakSet", "WeakRef", "FinalizationRegistry",
	"ArrayBuffer", "SharedArrayBuffer", "Atomics", "DataView", "JSON", "Promise",
	"Proxy", "Reflect", "Intl", "Iterator", "AsyncIterator", "Generator",
	// node
	"require", "module", "exports", "__dirname", "__filename", "process", "Buffer",
	"global", "console", "setTimeout", "clearTimeout", "setInterval", "clearInterval",
	"setImmediate", "clearImmediate", "queueMicrotask", "structuredClone",
	"TextEncoder", "TextDecoder", "URL", "URLSearchParams", "AbortController",
	"AbortSignal", "Event", "EventTarget", "fetch", "Headers", "Request", "Response",
	"FormData", "Blob", "performance", "crypto", "atob", "btoa", "WebAssembly",
	// browser
	"window", "self", "document", "navigator", "location", "history", "screen",
	"localStorage", "sessionStorage", "alert", "confirm", "prompt",
	"requestAnimationFrame", "cancelAnimationFrame", "getComputedStyle",
	"matchMedia", "XMLHttpRequest", "WebSocket", "Worker", "Image", "Audio",
	"File", "FileReader", "HTMLElement", "Element", "Node", "NodeList",
	"CustomEvent", "KeyboardEvent", "MouseEvent", "MutationObserver",
	"IntersectionObserver", "ResizeObserver", "print", "requestIdleCallback",
	"cancelIdleCallback", "createImageBitmap", "indexedDB",
	"webkitRTCPeerConnection", "webkitMediaStream",
	// typescript
	"Partial", "Required", "Readonly", "Record", "Pick", "Omit", "Exclude",
	"Extract", "NonNullable", "Parameters", "ConstructorParameters", "ReturnType",
	"InstanceType", "ThisParameterType", "OmitThisParameter", "ThisType",
	"Awaited", "Uppercase", "Lowercase", "Capitalize", "Uncapitalize",
	"PromiseLike", "ArrayLike", "Iterable", "IterableIterator", "AsyncIterable",
	"PropertyKey", "TemplateStringsArray", "ReadonlyArray", "ReadonlyMap",
	"ReadonlySet",
)

func setOf(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, name := range names {
		m[name] = true
	}
	return m
}

// IsBuiltin reports whether name is a global that never needs an import.
// Flow utility types ($Keys, $ReadOnly, ...) are always builtin.
func IsBuiltin(name string) bool {
	return builtinNames[name] || strings.HasPrefix(name, "$")
}
