// Package llm defines the invocation contract between the workflow engine and
// backend model clients. The engine only needs "send this prompt, get back a
// string or a token stream"; payload construction and wire parsing live in the
// backend clients that implement Invoker.
package llm
