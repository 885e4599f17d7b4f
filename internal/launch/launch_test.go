package launch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devserve-run/devserve/internal/pm"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFindEntryPatternOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "public/index.html", "<html></html>")
	writeFile(t, dir, "index.html", "<html></html>")

	entry, ok := FindEntry(dir)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "index.html"), entry.HTMLPath)
}

func TestFindEntryFallsBackToSubdirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "site/index.html", "<html></html>")

	entry, ok := FindEntry(dir)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "site", "index.html"), entry.HTMLPath)
	assert.Equal(t, filepath.Join(dir, "site"), entry.Dir())
}

func TestFindEntryNone(t *testing.T) {
	_, ok := FindEntry(t.TempDir())
	assert.False(t, ok)
}

func TestFindEntryModuleScript(t *testing.T) {
	tests := []struct {
		name         string
		html         string
		scriptSrc    string
		needsBundler bool
	}{
		{
			"typescript module",
			`<html><body><script type="module" src="/src/main.tsx"></script></body></html>`,
			"/src/main.tsx",
			true,
		},
		{
			"plain js module",
			`<html><body><script type="module" src="./main.js"></script></body></html>`,
			"./main.js",
			false,
		},
		{
			"external module",
			`<html><script type="module" src="https://cdn.example.com/app.ts"></script></html>`,
			"https://cdn.example.com/app.ts",
			false,
		},
		{
			"classic script ignored",
			`<html><script src="main.ts"></script></html>`,
			"",
			false,
		},
		{
			"no script",
			`<html><body>hello</body></html>`,
			"",
			false,
		},
		{
			"first module wins",
			`<html><script type="module" src="a.vue"></script><script type="module" src="b.js"></script></html>`,
			"a.vue",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "index.html", tt.html)

			entry, ok := FindEntry(dir)
			require.True(t, ok)
			assert.Equal(t, tt.scriptSrc, entry.ScriptSrc)
			assert.Equal(t, tt.needsBundler, entry.NeedsBundler)
		})
	}
}

func TestValidateCommand(t *testing.T) {
	assert.NoError(t, ValidateCommand("npm run dev"))
	assert.NoError(t, ValidateCommand(`FOO=bar node server.js --port 3000 | tee log`))
	assert.Error(t, ValidateCommand("echo 'unterminated"))
	assert.Error(t, ValidateCommand("if then fi"))
}

func TestBuildExplicitFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"scripts": {"dev": "vite"}}`)
	writeFile(t, dir, "index.html", `<script type="module" src="/src/main.ts"></script>`)

	plan := Build(dir, "node server.js", pm.Npm)
	require.Len(t, plan.Commands, 4)
	assert.Equal(t, KindExplicit, plan.Commands[0].Kind)
	assert.Equal(t, "node server.js", plan.Commands[0].Command)
	assert.Equal(t, KindDevScript, plan.Commands[1].Kind)
	assert.Equal(t, "npm run dev", plan.Commands[1].Command)
	assert.Equal(t, KindBundlerDev, plan.Commands[2].Kind)
	assert.Equal(t, "npx vite", plan.Commands[2].Command)
	assert.Equal(t, KindBundlerPreview, plan.Commands[3].Kind)
	assert.Equal(t, "npx vite preview", plan.Commands[3].Command)

	require.NotNil(t, plan.Entry)
	assert.True(t, plan.Entry.NeedsBundler)
}

func TestBuildDevScriptOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"scripts": {"dev": "next dev"}}`)

	plan := Build(dir, "", pm.Pnpm)
	require.Len(t, plan.Commands, 1)
	assert.Equal(t, KindDevScript, plan.Commands[0].Kind)
	assert.Equal(t, "pnpm run dev", plan.Commands[0].Command)
	assert.Nil(t, plan.Entry)
}

func TestBuildNoBundlerForExternalScript(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", `<script type="module" src="https://cdn.example.com/app.js"></script>`)

	plan := Build(dir, "", pm.Npm)
	assert.Empty(t, plan.Commands)
	require.NotNil(t, plan.Entry)
	assert.False(t, plan.Entry.NeedsBundler)
}

func TestBuildStaticOnlyProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html><body>plain</body></html>")

	plan := Build(dir, "", pm.Npm)
	assert.Empty(t, plan.Commands)
	require.NotNil(t, plan.Entry)
}
