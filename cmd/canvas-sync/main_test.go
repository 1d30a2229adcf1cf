package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/canvas-sync/internal/testutil"
	"github.com/Sternrassler/canvas-sync/pkg/cache"
	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv points the CLI at mock and runs it in a fresh directory.
func setupEnv(t *testing.T, mock *testutil.MockCanvas) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CANVAS_BASEURL", mock.URL())
	t.Setenv("CANVAS_TOKEN", "test-token")
	t.Setenv("CANVAS_RATELIMIT", "0")
	t.Setenv("CANVAS_PAGINATION_DELAY", "0s")
	t.Setenv("CANVAS_PAGINATION_PAGESIZE", "2")
	t.Setenv("CANVAS_LOGLEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newMock(t *testing.T) *testutil.MockCanvas {
	t.Helper()
	mock := testutil.NewMockCanvas()
	t.Cleanup(mock.Close)
	mock.SetSelf(map[string]any{"id": 1, "name": "Teacher"})
	return mock
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "0.1.0\n", out)
}

func TestWhoami(t *testing.T) {
	mock := newMock(t)
	setupEnv(t, mock)

	out, err := run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Teacher"`)
	assert.Equal(t, "Bearer test-token", mock.LastRequestHeader.Get("Authorization"))
}

func TestMissingToken(t *testing.T) {
	mock := newMock(t)
	setupEnv(t, mock)
	t.Setenv("CANVAS_TOKEN", "")

	_, err := run(t, "whoami")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestRoster_Snapshot(t *testing.T) {
	mock := newMock(t)
	dir := setupEnv(t, mock)
	mock.SetRoster(10, []map[string]any{
		{"id": 11, "login_id": "ada@example.edu"},
		{"id": 12, "login_id": "bob@example.edu"},
		{"id": 13, "login_id": "eve@example.edu"},
	})

	snapshot := filepath.Join(dir, "roster.json")
	out, err := run(t, "roster", "--course", "10", "--snapshot", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "3 users fetched ("+snapshot+")\n", out)

	out, err = run(t, "roster", "--course", "10", "--snapshot", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "3 users loaded ("+snapshot+")\n", out)
}

func TestSubmissions_AutoSnapshot(t *testing.T) {
	mock := newMock(t)
	dir := setupEnv(t, mock)
	mock.SetSubmissions(10, 20, []map[string]any{{"user_id": 11, "score": 3}})

	out, err := run(t, "submissions", "--course", "10", "--assignment", "20", "--auto-snapshot")
	require.NoError(t, err)
	assert.Equal(t, "1 submissions fetched (course-10-assignment-20-submissions.json)\n", out)
	assert.FileExists(t, filepath.Join(dir, "course-10-assignment-20-submissions.json"))
}

func TestForget(t *testing.T) {
	mock := newMock(t)
	dir := setupEnv(t, mock)
	mock.SetRoster(10, []map[string]any{{"id": 11, "login_id": "ada@example.edu"}})

	snapshot := filepath.Join(dir, "roster.json")
	_, err := run(t, "roster", "--course", "10", "--snapshot", snapshot)
	require.NoError(t, err)
	require.FileExists(t, snapshot)

	out, err := run(t, "forget", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "forgot "+snapshot+"\n", out)
	assert.NoFileExists(t, snapshot)

	out, err = run(t, "roster", "--course", "10", "--snapshot", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "1 users fetched ("+snapshot+")\n", out)
}

func TestSubmissions_Stdout(t *testing.T) {
	mock := newMock(t)
	setupEnv(t, mock)
	mock.SetSubmissions(10, 20, []map[string]any{{"user_id": 11, "score": 3}})

	out, err := run(t, "submissions", "--course", "10", "--assignment", "20")
	require.NoError(t, err)

	records, err := cache.Decode([]byte(out))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, float64(11), records[0]["user_id"])
}

func TestSync_LoginColumnDryRun(t *testing.T) {
	mock := newMock(t)
	dir := setupEnv(t, mock)
	mock.SetRoster(10, []map[string]any{
		{"id": 101, "login_id": "a@example.edu"},
		{"id": 102, "login_id": "b@example.edu"},
		{"id": 103, "login_id": "c@example.edu"},
	})
	mock.SetSubmissions(10, 20, []map[string]any{
		{"user_id": 101, "score": 90},
		{"user_id": 102, "score": 80},
	})

	grades := filepath.Join(dir, "grades.csv")
	require.NoError(t, os.WriteFile(grades, []byte("email,final\na@example.edu,90\nB@example.edu,85\nc@example.edu,70\n"), 0o644))

	out, err := run(t, "sync",
		"--course", "10", "--assignment", "20",
		"--grades", grades, "--score-column", "final", "--login-column", "email",
		"--dry-run", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "3/3 rows processed: 1 missing, 1 changed, 1 unchanged")
	assert.Contains(t, out, "1 grades written, 1 not written")

	posted := mock.GetGrades()
	require.Len(t, posted, 1)
	assert.Equal(t, int64(102), posted[0].UserID)
	assert.Equal(t, "85", posted[0].PostedGrade())
}

func TestSync_SubjectColumn(t *testing.T) {
	mock := newMock(t)
	dir := setupEnv(t, mock)
	mock.SetSubmissions(10, 20, nil)

	grades := filepath.Join(dir, "grades.csv")
	require.NoError(t, os.WriteFile(grades, []byte("user_id,final\n101,1\n102,2\n"), 0o644))

	out, err := run(t, "sync",
		"--course", "10", "--assignment", "20",
		"--grades", grades, "--score-column", "final", "--subject-column", "user_id",
		"--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "2 grades written, 0 not written")
	assert.Len(t, mock.GetGrades(), 2)
}

func TestSync_FlagValidation(t *testing.T) {
	mock := newMock(t)
	setupEnv(t, mock)

	_, err := run(t, "sync", "--course", "10", "--assignment", "20", "--grades", "g.csv", "--score-column", "s")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "login-column") || strings.Contains(err.Error(), "subject-column"))

	_, err = run(t, "sync", "--course", "10", "--assignment", "20", "--grades", "g.csv", "--score-column", "s",
		"--login-column", "email", "--subject-column", "id")
	assert.Error(t, err)
}
