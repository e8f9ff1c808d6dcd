// Package mock provides test doubles for the ai package interfaces.
// Behavior can be injected through exported function fields.
package mock
