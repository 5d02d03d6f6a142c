package validate

import "net/url"

// IsSafeURL reports whether raw is a well-formed http or https URL with a
// host. Anything else (file://, data:, relative paths, garbage) is
// rejected before a job is ever dispatched.
func IsSafeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
