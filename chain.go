// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import "strings"

// LoaderChain is a loader request split on "!". Loaders apply right to left;
// empty segments come from the "!!" prefix that disables configured loaders.
type LoaderChain []string

// ParseChain splits a loader request into its segments.
func ParseChain(request string) LoaderChain {
	return strings.Split(request, "!")
}

// String joins the chain back into a loader request.
func (c LoaderChain) String() string {
	return strings.Join(c, "!")
}

// Expand replaces every segment with the segments returned by fn.
func (c LoaderChain) Expand(fn func(segment string) []string) LoaderChain {
	out := make(LoaderChain, 0, len(c))
	for _, segment := range c {
		out = append(out, fn(segment)...)
	}
	return out
}

// InsertBefore places ref in front of every segment accepted by match.
func (c LoaderChain) InsertBefore(ref string, match func(segment string) bool) LoaderChain {
	return c.Expand(func(segment string) []string {
		if match(segment) {
			return []string{ref, segment}
		}
		return []string{segment}
	})
}

// InsertAfterFirst places ref behind the first segment accepted by match.
func (c LoaderChain) InsertAfterFirst(ref string, match func(segment string) bool) LoaderChain {
	for i, segment := range c {
		if match(segment) {
			out := make(LoaderChain, 0, len(c)+1)
			out = append(out, c[:i+1]...)
			out = append(out, ref)
			return append(out, c[i+1:]...)
		}
	}
	return c
}

// containsTag matches segments carrying the given query marker, e.g. "type=script".
func containsTag(tag string) func(string) bool {
	return func(segment string) bool {
		return strings.Contains(segment, tag)
	}
}

// namesLoader matches segments referencing the given loader, query ignored.
func namesLoader(name string) func(string) bool {
	return func(segment string) bool {
		return loaderName(segment) == name
	}
}
