package manifest

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolvePath appends rel to the path of base. A leading slash in rel does
// not reset the path to the server root: "/ducks/x" under "http://h/app/"
// is "http://h/app/ducks/x". An rel that is already an absolute http(s)
// URL is returned as is. Empty or unparsable values are an error.
func ResolvePath(base *url.URL, rel string) (*url.URL, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return nil, fmt.Errorf("empty path")
	}
	if base == nil {
		return nil, fmt.Errorf("nil base address")
	}

	if abs, err := url.Parse(rel); err == nil && abs.IsAbs() && abs.Host != "" &&
		(abs.Scheme == "http" || abs.Scheme == "https") {
		return abs, nil
	}

	// Query and fragment characters are part of the file name here
	joined := base.JoinPath(rel)
	// JoinPath leaves the path untouched when rel has an invalid escape
	if joined.String() == base.String() {
		return nil, fmt.Errorf("path %q does not name a resource", rel)
	}
	return joined, nil
}
