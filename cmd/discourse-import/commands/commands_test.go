package commands

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/discourse-import/internal/config"
)

func newTestForum(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/categories.json":
			if r.URL.Query().Get("parent_category_id") == "1" {
				fmt.Fprint(w, `{"category_list":{"categories":[{"id":4,"name":"Tools","parent_category_id":1}]}}`)
				return
			}
			fmt.Fprint(w, `{"category_list":{"categories":[{"id":1,"name":"Dev","subcategory_ids":[4]},{"id":3,"name":"Meta"}]}}`)
		case "/latest.json":
			fmt.Fprint(w, `{"topic_list":{"topics":[{"id":7,"title":"Hello","slug":"hello","category_id":4,"created_at":"2015-06-01T10:00:00Z"}]}}`)
		case "/t/7/1.json":
			fmt.Fprint(w, `{"post_stream":{"stream":[70]}}`)
		case "/posts/70.json":
			raw := fmt.Sprintf("Hi ![shot](%s/uploads/shot.png)", srv.URL)
			fmt.Fprintf(w, `{"id":70,"topic_id":7,"raw":%q,"cooked":""}`, raw)
		case "/uploads/shot.png":
			_, _ = w.Write([]byte("PNG"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImportCmd_FlagsOverrideConfig(t *testing.T) {
	cmd := &ImportCmd{
		Base:            "https://forum.example",
		PostsDir:        "out/_posts",
		NoRedirects:     true,
		NoImageDownload: true,
		UID:             true,
		Strategy:        "dom",
		MaxTopics:       5,
		RPS:             2,
	}
	cfg, err := loadConfig(&CLI{}, cmd.apply)
	require.NoError(t, err)

	assert.Equal(t, "https://forum.example/", cfg.Base)
	assert.Equal(t, "out/_posts", cfg.PostsDir)
	assert.Equal(t, config.DefaultAssets, cfg.Assets)
	assert.False(t, cfg.AddRedirects)
	assert.False(t, cfg.DownloadImages)
	assert.True(t, cfg.AddUID)
	assert.Equal(t, config.StrategyDOM, cfg.Strategy)
	assert.Equal(t, 5, cfg.MaxTopics)
	assert.InDelta(t, 2.0, cfg.HTTP.RequestsPerSecond, 0)
}

func TestImportCmd_UnsetFlagsKeepFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base: https://forum.example\nadd_redirects: false\nstrategy: pattern\n"), 0o600))

	cfg, err := loadConfig(&CLI{Config: path}, (&ImportCmd{}).apply)
	require.NoError(t, err)
	assert.False(t, cfg.AddRedirects)
	assert.Equal(t, config.StrategyPattern, cfg.Strategy)
}

func TestLoadConfig_RequiresBase(t *testing.T) {
	_, err := loadConfig(&CLI{}, nil)
	require.Error(t, err)
}

func TestRunImport_WritesPostsManifestAndMetrics(t *testing.T) {
	srv := newTestForum(t)
	dir := t.TempDir()

	cmd := &ImportCmd{
		Base:        srv.URL,
		Assets:      filepath.Join(dir, "assets"),
		AssetsURL:   "/assets",
		PostsDir:    filepath.Join(dir, "_posts"),
		Manifest:    filepath.Join(dir, "import.db"),
		MetricsFile: filepath.Join(dir, "metrics", "import.prom"),
	}
	cfg, err := loadConfig(&CLI{}, cmd.apply)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, RunImport(t.Context(), cfg, &out))
	assert.Contains(t, out.String(), "Import completed successfully")
	assert.Contains(t, out.String(), "written: 1")

	post, err := os.ReadFile(filepath.Join(dir, "_posts", "2015-06-01-hello.html"))
	require.NoError(t, err)
	assert.Contains(t, string(post), "![shot](/assets/hello-shot.png)")
	assert.FileExists(t, filepath.Join(dir, "assets", "hello-shot.png"))

	metrics, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "discourse_import_")

	out.Reset()
	require.NoError(t, RunReport(t.Context(), cfg.Manifest, 0, true, &out))
	assert.Contains(t, out.String(), "ok")
	assert.Contains(t, out.String(), "2015-06-01-hello.html")
}

func TestRunCategories_PrintsPaths(t *testing.T) {
	srv := newTestForum(t)
	cfg, err := loadConfig(&CLI{}, func(c *config.Config) { c.Base = srv.URL })
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, RunCategories(t.Context(), cfg, &out))
	assert.Equal(t, "1\tDev\n3\tMeta\n4\tDev/Tools\n", out.String())
}

func TestRunReport_EmptyManifest(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunReport(t.Context(), filepath.Join(t.TempDir(), "empty.db"), 10, false, &out))
	assert.Equal(t, "No runs recorded\n", out.String())
}

func TestRunInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigName)
	var out bytes.Buffer

	require.NoError(t, RunInit(path, false, &out))
	assert.Contains(t, out.String(), "initialized successfully")
	require.Error(t, RunInit(path, false, &out))
	require.NoError(t, RunInit(path, true, &out))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://meta.discourse.org/", cfg.Base)
}

func TestCLI_ParsesImportFlags(t *testing.T) {
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"import", "--base", "https://forum.example", "--no-redirects", "--strategy", "pattern", "--max-topics", "3"})
	require.NoError(t, err)
	assert.Equal(t, "import", ctx.Command())
	assert.Equal(t, "https://forum.example", cli.Import.Base)
	assert.True(t, cli.Import.NoRedirects)
	assert.Equal(t, "pattern", cli.Import.Strategy)
	assert.Equal(t, 3, cli.Import.MaxTopics)

	_, err = parser.Parse([]string{"import", "--strategy", "regex"})
	require.Error(t, err)
}
