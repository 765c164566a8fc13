package tree

import (
	"slices"
	"strings"
)

// nestingTags are the containers counted by LevelOf.
var nestingTags = []string{"msDesc", "msPart", "msItem", "msContents"}

// regionTags open a new region named tag+type for their subtree.
var regionTags = []string{
	"TEI", "msDesc", "msIdentifier", "head", "msContents", "msItem",
	"physDesc", "decoDesc", "decoNote", "history", "additional", "msPart",
}

// LevelOf counts the nesting containers named in a breadcrumb path.
func LevelOf(path string) int {
	level := 0
	for _, seg := range strings.Split(path, PathSeparator) {
		if slices.Contains(nestingTags, seg) {
			level++
		}
	}
	return level
}

// IsRegionTag reports whether tag opens a region.
func IsRegionTag(tag string) bool {
	return slices.Contains(regionTags, tag)
}

// RegionFor returns the region of an element with the given tag and type
// attribute inside a subtree whose region is inherited.
func RegionFor(tag, typ, inherited string) string {
	if IsRegionTag(tag) {
		return tag + typ
	}
	return inherited
}

// ReplaceLast substitutes the last occurrence of the path segment run old
// in path with repl. It returns path unchanged when old does not occur.
func ReplaceLast(path, old, repl string) string {
	segs := strings.Split(path, PathSeparator)
	olds := strings.Split(old, PathSeparator)
	for i := len(segs) - len(olds); i >= 0; i-- {
		if slices.Equal(segs[i:i+len(olds)], olds) {
			out := append(slices.Clone(segs[:i]), repl)
			out = append(out, segs[i+len(olds):]...)
			return strings.Join(out, PathSeparator)
		}
	}
	return path
}
