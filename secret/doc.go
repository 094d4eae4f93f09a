// Package secret resolves credentials referenced from configuration files so
// that tokens and client secrets never need to be written into them.
//
// Two forms are understood:
//   - Environment expansion: "${API_TOKEN}" (strict: a missing variable is an error)
//   - Secret references: "secretref:<provider>:<ref>", either as the whole value
//     or inline ("Bearer secretref:env:API_TOKEN")
//
// The built-in providers are "env" (ref is a variable name) and "file" (ref is
// a path whose trimmed contents are the secret). Additional providers register
// with DefaultRegistry.
package secret
