package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/internal/replay"
	"github.com/OCAP2/kartreplay/internal/scenario"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var flatScenario = filepath.Join("..", "..", "internal", "scenario", "testdata", "flat.json")

func cli(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := runCLI(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// workspace writes a config that keeps logs and exports inside a temp dir.
func workspace(t *testing.T) string {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"logsDir": "` + filepath.ToSlash(filepath.Join(dir, "logs")) + `",
		"monitor": { "statusFile": "` + filepath.ToSlash(filepath.Join(dir, "status.json")) + `" },
		"storage": {
			"type": "memory",
			"memory": { "outputDir": "` + filepath.ToSlash(filepath.Join(dir, "runs")) + `", "compressOutput": false }
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(cfg), 0644))
	return dir
}

// captured writes a self-consistent copy of the flat scenario into dir.
func captured(t *testing.T, dir string) string {
	t.Helper()
	out := filepath.Join(dir, "fixtures", "flat.json")
	code, stdout, stderr := cli(t, "capture", flatScenario, out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Captured 272 frames")
	return out
}

func TestRunCLI_Usage(t *testing.T) {
	code, _, stderr := cli(t)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "No arguments provided.")

	code, _, stderr = cli(t, "fly")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, `Unknown command "fly"`)

	code, stdout, _ := cli(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, ToolName+" "+CurrentVersion)

	code, stdout, _ = cli(t, "help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "capture")
}

func TestCapture_WritesReferenceLog(t *testing.T) {
	dir := t.TempDir()
	out := captured(t, dir)

	logPath := filepath.Join(dir, "fixtures", "flat.rkrd")
	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer f.Close()
	frames, err := replay.ReadReferenceLog(f)
	require.NoError(t, err)
	assert.Len(t, frames, 272)

	sc, err := scenario.Load(out)
	require.NoError(t, err)
	assert.Equal(t, "flat.rkrd", sc.ReferenceLog)
	assert.Equal(t, frames, sc.Reference)
	assert.Equal(t, "md_kart", sc.VehicleName())
}

func TestCapture_Usage(t *testing.T) {
	code, _, stderr := cli(t, "capture", flatScenario)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "capture needs a scenario and an output path.")

	code, _, _ = cli(t, "capture", "missing.json", filepath.Join(t.TempDir(), "out.json"))
	assert.Equal(t, exitError, code)
}

func TestReferenceLogPath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "flat.rkrd"), referenceLogPath(filepath.Join("a", "flat.json")))
	assert.Equal(t, filepath.Join("a", "flat.rkrd"), referenceLogPath(filepath.Join("a", "flat.json.gz")))
	assert.Equal(t, "flat.rkrd", referenceLogPath("flat"))
}

func TestRun_InSync(t *testing.T) {
	dir := workspace(t)
	fixture := captured(t, dir)

	code, stdout, stderr := cli(t, "run", "--config", dir, fixture)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Simulated 272/272 (in-game: 99) frames")
	assert.Contains(t, stdout, "In sync")
	assert.Contains(t, stdout, "Exported to "+filepath.Join(dir, "runs"))

	logs, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	raw, err := os.ReadFile(filepath.Join(dir, "logs", logs[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Replay finished")

	status, err := os.ReadFile(filepath.Join(dir, "status.json"))
	require.NoError(t, err)
	assert.Contains(t, string(status), `"frame": 271`)
	assert.Contains(t, string(status), `"done": true`)
}

func readLogs(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var all []byte
	for _, e := range entries {
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		all = append(all, raw...)
	}
	return string(all)
}

func perturbReference(t *testing.T, logPath string, frame int) {
	t.Helper()
	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	frames, err := replay.DecodeReferenceLog(raw)
	require.NoError(t, err)

	frames[frame].Pos[1] += 1

	var buf bytes.Buffer
	require.NoError(t, replay.WriteReferenceLog(&buf, frames))
	require.NoError(t, os.WriteFile(logPath, buf.Bytes(), 0644))
}

func TestRun_Desync(t *testing.T) {
	dir := workspace(t)
	fixture := captured(t, dir)
	perturbReference(t, filepath.Join(dir, "fixtures", "flat.rkrd"), 200)

	code, stdout, _ := cli(t, "run", "-c", dir, fixture)
	assert.Equal(t, exitDesync, code)
	assert.Contains(t, stdout, "Simulated 272/272")
	assert.Contains(t, stdout, "Desync at frame 200 (in-game: 28): pos")
	logs := readLogs(t, filepath.Join(dir, "logs"))
	assert.Contains(t, logs, "msg=desync")
	assert.Contains(t, logs, "frame=200")

	code, stdout, _ = cli(t, "run", "-c", dir, "--stop-on-desync", fixture)
	assert.Equal(t, exitDesync, code)
	assert.Contains(t, stdout, "Simulated 201/272")
}

func TestRun_Directory(t *testing.T) {
	dir := workspace(t)
	captured(t, dir)

	code, stdout, stderr := cli(t, "run", "-c", dir, "--frames", "180", filepath.Join(dir, "fixtures"))
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Scenario: "+filepath.Join(dir, "fixtures", "flat.json"))
	assert.Contains(t, stdout, "Simulated 180/180 (in-game: 7) frames")
	assert.Contains(t, stdout, "Completed in")
}

func TestRun_Errors(t *testing.T) {
	dir := workspace(t)

	code, _, stderr := cli(t, "run", "-c", dir)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "No scenarios provided.")

	code, _, stderr = cli(t, "run", "-c", dir, filepath.Join(dir, "missing.json"))
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "failed to open scenario")

	code, _, stderr = cli(t, "run", "-c", dir, "--start", "1,2", flatScenario)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "start:")

	code, _, _ = cli(t, "run", "--bogus")
	assert.Equal(t, exitError, code)
}

func TestExpandScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json.gz", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0755))

	got, err := expandScenarios([]string{dir, "x.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.json.gz"),
		filepath.Join(dir, "b.json"),
		"x.json",
	}, got)
}

func TestInspect(t *testing.T) {
	code, stdout, stderr := cli(t, "inspect", flatScenario)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Scenario:")
	assert.Regexp(t, `Triangles:\s+2\n`, stdout)
	assert.Regexp(t, `Vehicle:\s+md_kart \(kart\)`, stdout)
	assert.Regexp(t, `Octree:\s+built`, stdout)
	assert.Regexp(t, `Inputs:\s+100\n`, stdout)

	code, _, _ = cli(t, "inspect", "missing.json")
	assert.Equal(t, exitError, code)
}

func TestInspect_OBJ(t *testing.T) {
	obj := filepath.Join(t.TempDir(), "flat.obj")
	code, _, stderr := cli(t, "inspect", "--obj", obj, flatScenario)
	require.Equal(t, exitOK, code, stderr)

	raw, err := os.ReadFile(obj)
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(string(raw), "v "))
	assert.Equal(t, 2, strings.Count(string(raw), "f "))

	code, _, stderr = cli(t, "inspect", "--obj", obj, flatScenario, flatScenario)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "--obj needs exactly one scenario.")
}

func TestInGame(t *testing.T) {
	assert.Equal(t, uint32(0), inGame(0))
	assert.Equal(t, uint32(0), inGame(171))
	assert.Equal(t, uint32(0), inGame(172))
	assert.Equal(t, uint32(28), inGame(200))
}
