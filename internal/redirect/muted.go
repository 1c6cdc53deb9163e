package redirect

import (
	"slices"
	"strings"
)

const mutedExtension = ".php"

// Slugs requested by crawlers and scanners. Missing them is expected.
var mutedSlugs = []string{
	"favicon.ico",
	"index.htm",
	"robots.txt",
	"sitemap.xml",
	"webdav",
}

// IsMuted reports whether a missing slug is known noise that should not be logged.
func IsMuted(slug string) bool {
	return slices.Contains(mutedSlugs, slug) || strings.HasSuffix(slug, mutedExtension)
}
