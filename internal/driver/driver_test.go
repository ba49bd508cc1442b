package driver

import (
	goparser "go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Generation writes next to the directive files, so the cases run
// sequentially.
func TestProcessFiles(t *testing.T) {
	cases := []struct {
		dir      string
		contains []string
	}{
		{
			dir: "basic",
			contains: []string{
				"func NewApp() App {",
				"func (c *appImpl) Service() *Service {",
				"NewService(NewConfig())",
			},
		},
		{
			dir: "scoped",
			contains: []string{
				"func NewApp() App {",
				"handa.DoubleCheck",
				"func (c *appImpl) Store() Store {",
				"func (c *appImpl) Logger() handa.Provider[*Logger] {",
			},
		},
		{
			dir: "async",
			contains: []string{
				"func NewApp(ctx context.Context) App {",
				"errgroup.WithContext(ctx)",
				"handa.NewFuture[*Warehouse]()",
				"c.warehouseFuture.Wait(egCtx)",
				"c.catalogFuture.Fail(err)",
				"func (c *appImpl) Catalog() *handa.Future[*Catalog] {",
				"func (c *appImpl) Wait() error {",
			},
		},
		{
			dir: "sets",
			contains: []string{
				"func (c *appImpl) Handlers() []Handler {",
				"[]Handler{NewAuthHandler(), NewLogHandler()}",
				"func (c *appImpl) Routes() map[string]Handler {",
				`"auth": NewAuthHandler()`,
			},
		},
		{
			dir: "child",
			contains: []string{
				"type adminImpl struct",
				"func (c *appImpl) Admin() Admin {",
				"return newAdmin(c)",
				"func newAdmin(parent *appImpl) Admin {",
				"func (c *adminImpl) Session() *Session {",
				"NewSession(c.parent.configProvider())",
			},
		},
		{
			dir: "inject",
			contains: []string{
				"func (c *appImpl) InjectJob(target *Job) {",
				"c.injectJob(target)",
				"target.Cfg = NewConfig()",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.dir, func(t *testing.T) {
			src := filepath.Join("testdata", tc.dir, tc.dir+".go")
			out := filepath.Join("testdata", tc.dir, tc.dir+"_handa.go")
			t.Cleanup(func() { os.Remove(out) })

			d := New(Options{OutputSuffix: "_handa"})
			require.NoError(t, d.ProcessFiles([]string{src}))

			data, err := os.ReadFile(out)
			require.NoError(t, err)
			text := string(data)

			fset := token.NewFileSet()
			_, perr := goparser.ParseFile(fset, out, data, goparser.ParseComments)
			require.NoError(t, perr, "generated source must parse:\n%s", text)

			assert.Contains(t, text, "// Code generated by handa; DO NOT EDIT.")
			for _, want := range tc.contains {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestProcessFilesSkipsPlainFile(t *testing.T) {
	src := filepath.Join("testdata", "plain", "plain.go")

	d := New(Options{OutputSuffix: "_handa"})
	require.NoError(t, d.ProcessFiles([]string{src}))

	_, err := os.Stat(filepath.Join("testdata", "plain", "plain_handa.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	d := New(Options{})
	assert.Equal(t, defaultMaxRounds, d.opts.MaxRounds)
	assert.Equal(t, defaultParallelism, d.opts.Parallelism)

	d = New(Options{MaxRounds: 2, Parallelism: 1})
	assert.Equal(t, 2, d.opts.MaxRounds)
	assert.Equal(t, 1, d.opts.Parallelism)
}
