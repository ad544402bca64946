package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/graph/wav"
)

const tone = `
name: tone
package: %s
sample_rate: 8000
inputs:
  - {name: level, kind: value, default: 0.5, range: [0, 1]}
outputs:
  - {name: out, kind: stream}
nodes:
  - {name: osc, type: oscillator, args: [440]}
  - {name: z, type: delay}
connections:
  - osc.output * level + 0.5 * z.output -> z.input
  - z.output -> out
`

func writeDescription(t *testing.T, pkg string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(tone, "%s", pkg, 1)), 0o600))
	return path
}

func execute(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestGenerate(t *testing.T) {
	path := writeDescription(t, "tone")
	out, err := execute(context.Background(), "generate", path)
	require.NoError(t, err)
	generated := strings.TrimSuffix(path, ".yaml") + "_gen.go"
	assert.Contains(t, out, generated)

	src, err := os.ReadFile(generated)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(src), "// Code generated by graphgen. DO NOT EDIT."))
	assert.Contains(t, string(src), "package tone")
	assert.Contains(t, string(src), "func NewTone(sampleRate float32) *Tone")

	custom := filepath.Join(filepath.Dir(path), "custom.go")
	_, err = execute(context.Background(), "generate", "-o", custom, "--package", "voices", path)
	require.NoError(t, err)
	src, err = os.ReadFile(custom)
	require.NoError(t, err)
	assert.Contains(t, string(src), "package voices")
}

func TestGenerateWatch(t *testing.T) {
	path := writeDescription(t, "first")
	generated := strings.TrimSuffix(path, ".yaml") + "_gen.go"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := execute(ctx, "generate", "--watch", path)
		done <- err
	}()

	assert.Eventually(t, func() bool {
		src, err := os.ReadFile(generated)
		return err == nil && bytes.Contains(src, []byte("package first"))
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(strings.Replace(tone, "%s", "second", 1)), 0o600)
		src, err := os.ReadFile(generated)
		return err == nil && bytes.Contains(src, []byte("package second"))
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestCheck(t *testing.T) {
	path := writeDescription(t, "tone")
	out, err := execute(context.Background(), "check", "--dump", "--backend", "closure", path)
	require.NoError(t, err)
	assert.Contains(t, out, "tone: dynamic, 3 nodes")
	assert.Contains(t, out, "order: osc, z, ~expr0")
	assert.Contains(t, out, "delayed: ~expr0.output -> z.input")
	assert.Contains(t, out, "settable: level, osc.frequency, osc.amplitude")
	assert.Contains(t, out, "compiled: closure")

	_, err = execute(context.Background(), "check", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	path := writeDescription(t, "tone")
	for _, backend := range []string{"", "closure"} {
		output := filepath.Join(t.TempDir(), "tone.wav")
		_, err := execute(context.Background(), "render", "-o", output, "--seconds", "0.5", "--backend", backend, path)
		require.NoError(t, err)

		samples, format, err := wav.Load(output)
		require.NoError(t, err)
		assert.Equal(t, 8000, format.SampleRate)
		assert.Len(t, samples, 4000)
	}
}

func TestRenderInvalidDuration(t *testing.T) {
	path := writeDescription(t, "tone")
	output := filepath.Join(t.TempDir(), "tone.wav")
	_, err := execute(context.Background(), "render", "-o", output, "--seconds", "0", path)
	assert.ErrorIs(t, err, wav.ErrInvalidDuration)
	assert.NoFileExists(t, output)
}
