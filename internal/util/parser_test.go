package util

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestParseLinks(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><body>
		<a href="S2A_ONE.zip">one</a>
		<p><a href="/archive/S2B_TWO.ZIP?sig=abc">two</a></p>
		<a href="readme.txt">readme</a>
		<a name="anchor">no href</a>
		<a href="/">root</a>
	</body></html>`))
	require.NoError(t, err)

	assert.Equal(t, []string{"S2A_ONE.zip", "/archive/S2B_TWO.ZIP?sig=abc"}, ParseLinks(doc, ".zip"))
}

func TestResolveLinks(t *testing.T) {
	base, err := url.Parse("https://mirror.example/l2a/index.html")
	require.NoError(t, err)

	got, bad := ResolveLinks(base, []string{"b.zip", "/root/a.zip", "b.zip", "https://other.example/c.zip", "%zz.zip"})
	assert.Equal(t, []string{
		"https://mirror.example/l2a/b.zip",
		"https://mirror.example/root/a.zip",
		"https://other.example/c.zip",
	}, got)
	assert.Equal(t, []string{"%zz.zip"}, bad)
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.zip" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write([]byte("zipbytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "in", "a.zip")
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/a.zip", nil)
	require.NoError(t, err)
	n, err := DownloadToFile(srv.Client(), req, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "zipbytes", string(b))
	assert.NoFileExists(t, dest+".part")

	missing := filepath.Join(t.TempDir(), "missing.zip")
	req, err = http.NewRequest(http.MethodGet, srv.URL+"/missing.zip", nil)
	require.NoError(t, err)
	_, err = DownloadToFile(srv.Client(), req, missing)
	assert.ErrorContains(t, err, "404")
	assert.NoFileExists(t, missing)
	assert.NoFileExists(t, missing+".part")
}
