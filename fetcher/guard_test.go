package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url  string
		want error
	}{
		{"https://93.184.216.34/page", nil},
		{"ftp://example.com/file", ErrUnsafeScheme},
		{"file:///etc/passwd", ErrUnsafeScheme},
		{"http://127.0.0.1:8080/", ErrPrivateAddress},
		{"http://[::1]/", ErrPrivateAddress},
		{"http://10.1.2.3/", ErrPrivateAddress},
		{"http://192.168.1.1/admin", ErrPrivateAddress},
		{"http://169.254.169.254/latest/meta-data", ErrPrivateAddress},
		{"http://0.0.0.0/", ErrPrivateAddress},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if tt.want == nil && err != nil {
			t.Errorf("ValidateURL(%q): unexpected error %v", tt.url, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("ValidateURL(%q): got %v, want %v", tt.url, err, tt.want)
		}
	}
	if err := ValidateURL("http:///nohost"); err == nil {
		t.Error("missing host should fail")
	}
}

func TestSafePath(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		in   string
		want string
	}{
		{"shop/index.html", "shop/index.html"},
		{"/shop/index.html", "shop/index.html"},
		{"../etc/passwd", "etc/passwd"},
		{"a/../../b.html", "b.html"},
	}
	for _, tt := range tests {
		got, err := SafePath(root, tt.in)
		if err != nil {
			t.Errorf("SafePath(%q): %v", tt.in, err)
			continue
		}
		if want := filepath.Join(root, filepath.FromSlash(tt.want)); got != want {
			t.Errorf("SafePath(%q): got %q, want %q", tt.in, got, want)
		}
	}
	if got, _ := SafePath("", "../x.html"); got != "../x.html" {
		t.Errorf("no root: got %q", got)
	}
	if _, err := SafePath(filepath.Join(root, "missing"), "x.html"); err == nil {
		t.Error("missing root should fail")
	}
}

func TestSafePath_Symlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.html")
	if err := os.WriteFile(secret, []byte("<p>secret</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	inside := filepath.Join(root, "page.html")
	if err := os.WriteFile(inside, []byte("<p>ok</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(root, "leak.html")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "out")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(inside, filepath.Join(root, "alias.html")); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{"leak.html", "out/secret.html"} {
		if _, err := SafePath(root, p); !errors.Is(err, ErrPathTraversal) {
			t.Errorf("SafePath(%q): got %v, want ErrPathTraversal", p, err)
		}
	}

	got, err := SafePath(root, "alias.html")
	if err != nil {
		t.Fatalf("alias inside root: %v", err)
	}
	want, _ := filepath.EvalSymlinks(inside)
	if got != want {
		t.Errorf("alias: got %q, want %q", got, want)
	}

	l := NewLoader(WithFilesRoot(root))
	if _, err := l.Load(context.Background(), Source{Path: "leak.html"}); !errors.Is(err, ErrPathTraversal) {
		t.Errorf("Load through symlink: got %v, want ErrPathTraversal", err)
	}
}

func TestLoader_Guards(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "ok.html"), []byte("<p>ok</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(WithFilesRoot(root), WithPrivateBlocked())
	ctx := context.Background()

	page, err := l.Load(ctx, Source{Path: "ok.html"})
	if err != nil {
		t.Fatalf("confined file: %v", err)
	}
	if !strings.HasSuffix(page.URL, "ok.html") {
		t.Errorf("url: got %q", page.URL)
	}

	if _, err := l.Load(ctx, Source{Path: "../../etc/passwd"}); err == nil {
		t.Error("escaping path should not be read")
	}
	if _, err := l.Load(ctx, Source{Path: "-"}); !errors.Is(err, ErrPathTraversal) {
		t.Errorf("stdin with files root: got %v", err)
	}
	if _, err := l.Load(ctx, Source{URL: "http://127.0.0.1:1/"}); !errors.Is(err, ErrPrivateAddress) {
		t.Errorf("private url: got %v", err)
	}
}

func TestLoader_WithoutFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte("<p>private</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	l := NewLoader(WithoutFiles(), WithStdin(strings.NewReader("<p>stdin</p>")))
	for _, src := range []Source{{Path: path}, {Path: "-"}} {
		_, err := l.Load(ctx, src)
		if !errors.Is(err, ErrFilesDisabled) {
			t.Errorf("Load(%q): got %v, want ErrFilesDisabled", src.Path, err)
		}
		if !IsRefused(err) {
			t.Errorf("IsRefused(%v): want true", err)
		}
	}
	if _, err := l.Load(ctx, Source{HTML: "<p>inline</p>"}); err != nil {
		t.Errorf("inline source: %v", err)
	}

	rooted := NewLoader(WithoutFiles(), WithFilesRoot(filepath.Dir(path)))
	if _, err := rooted.Load(ctx, Source{Path: "page.html"}); err != nil {
		t.Errorf("files root overrides: %v", err)
	}
	if IsRefused(errors.New("fetcher: read file: no such file")) {
		t.Error("plain errors are not refusals")
	}
}
