package batch

import "github.com/bmatcuk/doublestar/v4"

// doublestarMatch matches a bare filename against an fnmatch-style
// pattern (spec §4.6's include/exclude filters), e.g. "*.jpg" or
// "report-????.csv".
func doublestarMatch(pattern, name string) (bool, error) {
	return doublestar.Match(pattern, name)
}

// expandSources resolves each source argument to a list of local paths,
// supporting "**" recursive globs the way the original CLI's
// glob(..., recursive=True) did (spec §4.6's source expansion).
func expandSources(sources []string) ([]string, error) {
	var out []string
	for _, src := range sources {
		matches, err := doublestar.FilepathGlob(src)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			// A plain literal path (no glob metacharacters) that exists
			// on disk should still be included even if FilepathGlob found
			// no metacharacter matches for it.
			out = append(out, src)
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}
