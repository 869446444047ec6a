// Package credential defines the identity handed to the business layer, the
// error taxonomy shared by the auth components and the request context keys.
package credential
