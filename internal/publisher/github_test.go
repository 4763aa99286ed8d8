package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/google/go-github/v55/github"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrqcrew/callsign-notes/internal/domain"
)

var testTarget = domain.GitHubTarget{Owner: "qrqcrew", Repo: "polo-notes", Branch: "main"}

func newTestPublisher(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	gh := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base
	gh.UploadURL = base

	return NewClientWithGitHub(gh, testTarget, "Notes Bot", "bot@example.com", zerolog.Nop())
}

func TestReadFile(t *testing.T) {
	content := "# Test Callsign Notes\n\nK4MW ⚓ Test #1\n"

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/qrqcrew/polo-notes/contents/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		json.NewEncoder(w).Encode(map[string]any{
			"type":     "file",
			"name":     "notes.txt",
			"path":     "notes.txt",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		})
	})

	got, err := newTestPublisher(t, mux).ReadFile(context.Background(), "notes.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, content, *got)
}

func TestReadFileNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/qrqcrew/polo-notes/contents/missing.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	got, err := newTestPublisher(t, mux).ReadFile(context.Background(), "missing.txt")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// gitAPIRecorder fakes the Git data API endpoints the batch commit saga walks
type gitAPIRecorder struct {
	mu        sync.Mutex
	blobs     int
	treeFail  bool
	refUpdate map[string]any
}

func (g *gitAPIRecorder) mux() *http.ServeMux {
	mux := http.NewServeMux()
	prefix := "/repos/qrqcrew/polo-notes/git/"

	mux.HandleFunc(prefix+"ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ref":"refs/heads/main","object":{"sha":"headsha","type":"commit"}}`)
	})
	mux.HandleFunc(prefix+"commits/headsha", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"headsha","tree":{"sha":"basetree"},"message":"previous"}`)
	})
	mux.HandleFunc(prefix+"blobs", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.blobs++
		n := g.blobs
		g.mu.Unlock()
		fmt.Fprintf(w, `{"sha":"blob-%d"}`, n)
	})
	mux.HandleFunc(prefix+"trees", func(w http.ResponseWriter, r *http.Request) {
		if g.treeFail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"boom"}`)
			return
		}
		fmt.Fprint(w, `{"sha":"newtree"}`)
	})
	mux.HandleFunc(prefix+"commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"newcommit","tree":{"sha":"newtree"}}`)
	})
	mux.HandleFunc(prefix+"refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		g.mu.Lock()
		g.refUpdate = body
		g.mu.Unlock()
		fmt.Fprint(w, `{"ref":"refs/heads/main","object":{"sha":"newcommit","type":"commit"}}`)
	})

	return mux
}

func TestBatchCommit(t *testing.T) {
	rec := &gitAPIRecorder{}
	client := newTestPublisher(t, rec.mux())

	files := []domain.PendingFile{
		{Path: "qrq-crew.txt", Content: "a", OrgLabel: "QRQ Crew", MemberCount: 2, Target: testTarget},
		{Path: "skcc.txt", Content: "b", OrgLabel: "SKCC", MemberCount: 3, Target: testTarget},
	}

	err := client.BatchCommit(context.Background(), files, BuildCommitMessage(files))
	require.NoError(t, err)

	assert.Equal(t, 2, rec.blobs)
	require.NotNil(t, rec.refUpdate)
	assert.Equal(t, "newcommit", rec.refUpdate["sha"])
}

func TestBatchCommitAbortsOnFailure(t *testing.T) {
	rec := &gitAPIRecorder{treeFail: true}
	client := newTestPublisher(t, rec.mux())

	files := []domain.PendingFile{
		{Path: "qrq-crew.txt", Content: "a", OrgLabel: "QRQ Crew", MemberCount: 2, Target: testTarget},
	}

	err := client.BatchCommit(context.Background(), files, "message")
	require.Error(t, err)

	// The branch reference was never touched
	assert.Nil(t, rec.refUpdate)
}

func TestBuildCommitMessageSingleFile(t *testing.T) {
	files := []domain.PendingFile{
		{OrgLabel: "QRQ Crew", MemberCount: 42},
	}

	message := BuildCommitMessage(files)
	assert.Equal(t, "Update QRQ Crew callsign notes (42 members)\n\nGenerated by callsign-notes-daemon", message)
}

func TestBuildCommitMessageMultipleFiles(t *testing.T) {
	files := []domain.PendingFile{
		{OrgLabel: "QRQ Crew", MemberCount: 42},
		{OrgLabel: "SKCC", MemberCount: 7},
	}

	message := BuildCommitMessage(files)
	assert.Contains(t, message, "Update callsign notes")
	assert.Contains(t, message, "- QRQ Crew: 42 members")
	assert.Contains(t, message, "- SKCC: 7 members")
	assert.Contains(t, message, "Generated by callsign-notes-daemon")
}
