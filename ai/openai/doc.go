// Package openai provides production implementations of the ai package
// interfaces backed by OpenAI-compatible APIs via langchaingo.
package openai
