package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/school-directory/dataurl"
	"github.com/stevemurr/school-directory/school"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "schooldir", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "list", "add", "update", "delete", "validate", "info", "clear"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestFormFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"add", "update", "validate"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		for _, field := range []string{"name", "address", "city", "state", "contact", "email", "image"} {
			assert.NotNil(t, sub.Flags().Lookup(field), "%s --%s", name, field)
		}
	}
}

// run executes the root command against a fresh JSON store in dir.
func run(t *testing.T, dir string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("SCHOOLDIR_STORE_BACKEND", "json")
	t.Setenv("SCHOOLDIR_DATA_DIR", dir)
	t.Setenv("SCHOOLDIR_LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeImage(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o644))
	return path
}

func formArgs(image string) []string {
	args := []string{
		"--name", "Springfield Elementary",
		"--address", "19 Plympton St",
		"--city", "Springfield",
		"--state", "OR",
		"--contact", "555-010-0123",
		"--email", "office@springfield.edu",
	}
	if image != "" {
		args = append(args, "--image", image)
	}
	return args
}

func decodeSchools(t *testing.T, out string) []school.School {
	t.Helper()
	var schools []school.School
	require.NoError(t, json.Unmarshal([]byte(out), &schools))
	return schools
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := run(t, t.TempDir(), "list", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestListEmpty(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "list", "--format", "json")
	require.NoError(t, err)
	assert.Empty(t, decodeSchools(t, out))
}

func TestAddListUpdateDelete(t *testing.T) {
	dir := t.TempDir()
	img := writeImage(t, t.TempDir())

	out, _, err := run(t, dir, append([]string{"add", "--format", "json"}, formArgs(img)...)...)
	require.NoError(t, err)
	added := decodeSchools(t, out)
	require.Len(t, added, 1)
	s := added[0]
	assert.NotZero(t, s.ID)
	assert.Equal(t, "Springfield Elementary", s.Name)

	mt, data, err := dataurl.Parse(s.Image)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nfake"), data)

	out, _, err = run(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Springfield Elementary")

	id := strconv.FormatInt(s.ID, 10)
	out, _, err = run(t, dir, "update", id, "--city", "Shelbyville", "--format", "json")
	require.NoError(t, err)
	updated := decodeSchools(t, out)
	require.Len(t, updated, 1)
	assert.Equal(t, s.ID, updated[0].ID)
	assert.Equal(t, "Shelbyville", updated[0].City)
	assert.Equal(t, s.Name, updated[0].Name)
	assert.Equal(t, s.Image, updated[0].Image)

	out, _, err = run(t, dir, "delete", id)
	require.NoError(t, err)
	assert.Equal(t, "deleted "+id+"\n", out)

	out, _, err = run(t, dir, "list", "--format", "json")
	require.NoError(t, err)
	assert.Empty(t, decodeSchools(t, out))
}

func TestAddRequiresImage(t *testing.T) {
	dir := t.TempDir()
	_, stderr, err := run(t, dir, append([]string{"add"}, formArgs("")...)...)
	require.ErrorIs(t, err, errInvalidForm)
	assert.Contains(t, stderr, "image: School image is required")

	out, _, err := run(t, dir, "list", "--format", "json")
	require.NoError(t, err)
	assert.Empty(t, decodeSchools(t, out))
}

func TestAddMissingImageFile(t *testing.T) {
	_, _, err := run(t, t.TempDir(), append([]string{"add"}, formArgs(filepath.Join(t.TempDir(), "nope.png"))...)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUpdateNotFound(t *testing.T) {
	_, _, err := run(t, t.TempDir(), "update", "42", "--city", "x")
	require.ErrorIs(t, err, school.ErrNotFound)
}

func TestUpdateInvalidID(t *testing.T) {
	_, _, err := run(t, t.TempDir(), "update", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid school id")
}

func TestDeleteMissingIsNoop(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "delete", "7")
	require.NoError(t, err)
	assert.Equal(t, "deleted 7\n", out)
}

func TestValidate(t *testing.T) {
	img := writeImage(t, t.TempDir())

	out, _, err := run(t, t.TempDir(), append([]string{"validate"}, formArgs(img)...)...)
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	out, _, err = run(t, t.TempDir(), "validate", "--update", "--format", "json",
		"--name", "x", "--address", "a", "--city", "c", "--state", "s",
		"--contact", "12345", "--email", "nope")
	require.ErrorIs(t, err, errInvalidForm)
	var res school.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, map[string]string{
		"contact": "Please enter a valid phone number",
		"email":   "Please enter a valid email address",
	}, res.Errors)
}

func TestCorruptStorageFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schools.json"), []byte(`{"not":"a list"}`), 0o644))

	_, _, err := run(t, dir, "list")
	require.ErrorIs(t, err, school.ErrCorrupt)
	assert.Contains(t, err.Error(), "Stored school data is corrupt")
}

func TestUnknownBackend(t *testing.T) {
	t.Setenv("SCHOOLDIR_STORE_BACKEND", "redis")
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"list"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestInfoReportsKeys(t *testing.T) {
	dir := t.TempDir()
	img := writeImage(t, t.TempDir())
	_, _, err := run(t, dir, append([]string{"add"}, formArgs(img)...)...)
	require.NoError(t, err)

	out, _, err := run(t, dir, "info", "--format", "json")
	require.NoError(t, err)
	var info storeInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "json", info.Backend)
	assert.Equal(t, "schools", info.Key)
	assert.Equal(t, []string{"schools"}, info.Keys)
	assert.Equal(t, 1, info.Schools)
	assert.Empty(t, info.Error)
}

func TestInfoSurvivesCorruptStorage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schools.json"), []byte(`{`), 0o644))

	out, _, err := run(t, dir, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "keys:     schools")
	assert.Contains(t, out, "Stored school data is corrupt")
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	img := writeImage(t, t.TempDir())
	_, _, err := run(t, dir, append([]string{"add"}, formArgs(img)...)...)
	require.NoError(t, err)

	_, _, err = run(t, dir, "clear")
	require.ErrorIs(t, err, errConfirm)

	out, _, err := run(t, dir, "clear", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "cleared\n", out)

	out, _, err = run(t, dir, "info", "--format", "json")
	require.NoError(t, err)
	var info storeInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Empty(t, info.Keys)
	assert.Zero(t, info.Schools)

	out, _, err = run(t, dir, "clear", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "nothing to clear\n", out)
}
