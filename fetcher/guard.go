package fetcher

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	ErrUnsafeScheme   = errors.New("fetcher: only http and https URLs can be fetched")
	ErrPrivateAddress = errors.New("fetcher: URL targets a private or loopback address")
	ErrPathTraversal  = errors.New("fetcher: path escapes the files root")
	ErrFilesDisabled  = errors.New("fetcher: path sources are disabled")
)

// IsRefused reports whether err comes from a source guard rather than from
// acquiring the page.
func IsRefused(err error) bool {
	return errors.Is(err, ErrUnsafeScheme) || errors.Is(err, ErrPrivateAddress) ||
		errors.Is(err, ErrPathTraversal) || errors.Is(err, ErrFilesDisabled)
}

// ValidateURL checks that rawURL is http(s) with a host that does not
// resolve to a loopback, link-local or private address. Unresolvable hosts
// pass; the fetch itself fails later.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("fetcher: invalid URL: %w", err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("fetcher: URL has no host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateAddress
		}
		return nil
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrPrivateAddress
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// SafePath resolves a user supplied path under root. Absolute inputs are
// taken relative to root. Symlinks are followed, and the target must stay
// under root too.
func SafePath(root, userPath string) (string, error) {
	if root == "" {
		return userPath, nil
	}
	base := filepath.Clean(root)
	joined := filepath.Join(base, filepath.Clean("/"+userPath))

	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return "", fmt.Errorf("fetcher: files root: %w", err)
	}
	real, err := filepath.EvalSymlinks(joined)
	if errors.Is(err, fs.ErrNotExist) {
		// Nothing to follow; the read reports the missing file.
		return joined, nil
	}
	if err != nil {
		return "", fmt.Errorf("fetcher: resolve %q: %w", userPath, err)
	}
	if !within(realBase, real) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, userPath)
	}
	return real, nil
}

func within(base, p string) bool {
	rel, err := filepath.Rel(base, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
