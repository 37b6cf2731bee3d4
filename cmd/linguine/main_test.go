package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

// assertTextEqual mirrors the teacher's own diff-on-failure idiom: when two
// renderings disagree, show a human-readable diff instead of a wall of text.
func assertTextEqual(t *testing.T, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(want, got, true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	t.Errorf("disassembly text mismatch (want -> got):\n%s", dmp.DiffPrettyText(diffs))
}

func TestCLI_RunExecutesEntryPoint(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.lng")
	require.NoError(t, os.WriteFile(src, []byte(`func main() { return 1 + 2; }`), 0o644))

	root := newRootCmd()
	root.SetArgs([]string{"run", src})
	out := captureStdout(t, func() {
		require.NoError(t, root.Execute())
	})
	require.Equal(t, "3\n", out)
}

// TestCLI_DisasmIsDeterministicAcrossRecompiles compiles the same source
// twice to two separate images and checks their disassembly listings are
// byte-for-byte identical, with a diff rendered on any mismatch.
func TestCLI_DisasmIsDeterministicAcrossRecompiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.lng")
	require.NoError(t, os.WriteFile(src, []byte(`
		func fib(n) {
			if (n < 2) {
				return n;
			}
			return fib(n - 1) + fib(n - 2);
		}
		func main() {
			return fib(10);
		}
	`), 0o644))

	disasmOf := func(suffix string) string {
		img := filepath.Join(dir, "prog"+suffix+".lnb")
		compile := newRootCmd()
		compile.SetArgs([]string{"compile", src, "-o", img})
		require.NoError(t, compile.Execute())

		disasm := newRootCmd()
		disasm.SetArgs([]string{"disasm", img})
		return captureStdout(t, func() {
			require.NoError(t, disasm.Execute())
		})
	}

	a := disasmOf("-a")
	b := disasmOf("-b")
	require.NotEmpty(t, a)
	assertTextEqual(t, a, b)
}
