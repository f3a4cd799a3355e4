package wikimedia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWiki emulates the handful of Action API calls the client makes.
func fakeWiki(t *testing.T, upload func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			require.NoError(t, r.ParseMultipartForm(10<<20))
		} else {
			require.NoError(t, r.ParseForm())
		}
		switch r.Form.Get("action") {
		case "query":
			switch {
			case r.Form.Get("meta") == "tokens" && r.Form.Get("type") == "login":
				fmt.Fprint(w, `{"query": {"tokens": {"logintoken": "LT+\\"}}}`) //nolint:errcheck
			case r.Form.Get("meta") == "tokens" && r.Form.Get("type") == "csrf":
				fmt.Fprint(w, `{"query": {"tokens": {"csrftoken": "CT+\\"}}}`) //nolint:errcheck
			case r.Form.Get("list") == "allimages":
				if r.Form.Get("aisha1") == "da39a3ee5e6b4b0d3255bfef95601890afd80709" {
					fmt.Fprint(w, `{"query": {"allimages": [{"name": "Existing file.jpg"}]}}`) //nolint:errcheck
					return
				}
				fmt.Fprint(w, `{"query": {"allimages": []}}`) //nolint:errcheck
			default:
				t.Errorf("unexpected query: %v", r.Form)
			}
		case "login":
			assert.Equal(t, "bot", r.Form.Get("lgname"))
			assert.NotEmpty(t, r.Form.Get("lgtoken"))
			fmt.Fprint(w, `{"login": {"result": "Success"}}`) //nolint:errcheck
		case "upload":
			upload(w, r)
		default:
			t.Errorf("unexpected action %q", r.Form.Get("action"))
		}
	}))
}

func TestLogIn(t *testing.T) {
	server := fakeWiki(t, nil)
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")
	require.NoError(t, client.LogIn(context.Background()))
	assert.NotEmpty(t, client.csrfToken)
}

func TestLogInRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("action") == "login" {
			fmt.Fprint(w, `{"login": {"result": "Failed", "reason": "bad password"}}`) //nolint:errcheck
			return
		}
		fmt.Fprint(w, `{"query": {"tokens": {"logintoken": "LT"}}}`) //nolint:errcheck
	}))
	defer server.Close()

	client := NewClient(server.URL, "bot", "wrong")
	err := client.LogIn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad password")
}

func TestFindBySHA1(t *testing.T) {
	server := fakeWiki(t, nil)
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")

	name, err := client.FindBySHA1(context.Background(), "da39a3ee5e6b4b0d3255bfef95601890afd80709")
	require.NoError(t, err)
	assert.Equal(t, "Existing file.jpg", name)

	name, err = client.FindBySHA1(context.Background(), "ffffffffffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestUploadSuccess(t *testing.T) {
	var gotFilename, gotText string
	server := fakeWiki(t, func(w http.ResponseWriter, r *http.Request) {
		gotFilename = r.FormValue("filename")
		gotText = r.FormValue("text")
		fmt.Fprint(w, `{"upload": {"result": "Success"}}`) //nolint:errcheck
	})
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")
	require.NoError(t, client.LogIn(context.Background()))

	err := client.Upload(context.Background(), UploadParams{
		Title: "A Photograph - DPLA - abc.jpg",
		File:  strings.NewReader("jpegbytes"),
		Text:  "== description ==",
	})
	require.NoError(t, err)
	assert.Equal(t, "A Photograph - DPLA - abc.jpg", gotFilename)
	assert.Equal(t, "== description ==", gotText)
}

func TestUploadWarnings(t *testing.T) {
	server := fakeWiki(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.FormValue("ignorewarnings"))
		fmt.Fprint(w, `{"upload": {"result": "Warning", "warnings": {"exists-normalized": "File.jpg"}}}`) //nolint:errcheck
	})
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")
	require.NoError(t, client.LogIn(context.Background()))

	err := client.Upload(context.Background(), UploadParams{
		Title: "File.jpg",
		File:  strings.NewReader("jpegbytes"),
	})
	var warnErr *WarningsError
	require.True(t, errors.As(err, &warnErr))
	assert.Equal(t, []string{"exists-normalized"}, warnErr.Warnings)
}

func TestUploadIgnoreWarningsField(t *testing.T) {
	server := fakeWiki(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.FormValue("ignorewarnings"))
		fmt.Fprint(w, `{"upload": {"result": "Success"}}`) //nolint:errcheck
	})
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")
	require.NoError(t, client.LogIn(context.Background()))

	err := client.Upload(context.Background(), UploadParams{
		Title:          "File.jpg",
		File:           strings.NewReader("jpegbytes"),
		IgnoreWarnings: true,
	})
	require.NoError(t, err)
}

func TestUploadAPIError(t *testing.T) {
	server := fakeWiki(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": "fileexists-no-change", "info": "exact duplicate"}}`) //nolint:errcheck
	})
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")
	require.NoError(t, client.LogIn(context.Background()))

	err := client.Upload(context.Background(), UploadParams{
		Title: "File.jpg",
		File:  strings.NewReader("jpegbytes"),
	})
	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, "fileexists-no-change", uploadErr.Code)
}
