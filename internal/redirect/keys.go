package redirect

// DefaultKey is reserved for the system default lookup. It is never produced
// for a non-empty domain or slug, so InvalidateCache can not reach it.
const DefaultKey = "default"

// BuildKey maps a (domain, slug) pair to its canonical cache key.
// Empty strings count as absent.
func BuildKey(domain, slug string) string {
	switch {
	case domain != "" && slug != "":
		return "d." + domain + ".s." + slug
	case domain != "":
		return "d." + domain
	case slug != "":
		return "s." + slug
	default:
		return DefaultKey
	}
}
