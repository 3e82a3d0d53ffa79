package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/flowengine/pkg/definition"
	"github.com/dukex/flowengine/pkg/dispatch"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence/file"
	"github.com/dukex/flowengine/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportFlow = `
name: report
tasks:
  - name: collect
    category: compute
    resource: collector
    next: [split]
  - name: split
    category: foreach
    foreach:
      source: rows
      tasks:
        - name: render
          category: compute
          resource: renderer
`

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer

	app := newApp()
	app.Writer = &buf
	app.ErrWriter = io.Discard

	err := app.Run(context.Background(), append([]string{"flowengine"}, args...))

	return buf.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte(reportFlow), 0o600))

	out, err := runApp(t, "validate", "--log-level", "error", path)
	require.NoError(t, err)

	assert.Contains(t, out, "report: valid (2 top-level tasks)")
	assert.Contains(t, out, "split [foreach] NOT_STARTED")
	assert.Contains(t, out, "  split~0-render [compute] NOT_STARTED")

	out, err = runApp(t, "validate", "--log-level", "error", "--max-depth", "0", path)
	require.NoError(t, err)
	assert.Contains(t, out, "not shown")
}

func TestValidateCommand_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\ntasks:\n  - name: a\n    category: nope\n"), 0o600))

	_, err := runApp(t, "validate", "--log-level", "error", path)
	require.Error(t, err)

	_, err = runApp(t, "validate", "--log-level", "error")
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	root := t.TempDir()

	driver, err := scheduler.NewDriver(scheduler.Config{
		Store:      file.NewStore(root, slog.Default()),
		Dispatcher: dispatch.FuncDispatcher(func(context.Context, dispatch.Request) error { return nil }),
	}, slog.Default())
	require.NoError(t, err)

	_, err = driver.Submit(context.Background(), dispatch.Submission{
		ExecutionID: "exec-report",
		Definition: &models.GraphDefinition{
			Name:  "report",
			Tasks: []*models.TaskDefinition{{Name: "collect", Category: models.CategoryCompute}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, driver.Complete(context.Background(), dispatch.Completion{
		ExecutionID: "exec-report",
		TaskName:    "collect",
		Status:      models.StatusFailed,
		Code:        "TIMEOUT",
	}))

	out, err := runApp(t, "inspect", "--log-level", "error", "--database-url", "file://"+root, "--execution-id", "exec-report")
	require.NoError(t, err)

	assert.Contains(t, out, "execution exec-report: FAILED")
	assert.Contains(t, out, "failed: collect TIMEOUT")

	out, err = runApp(t, "inspect", "--log-level", "error", "--database-url", "file://"+root, "--execution-id", "exec-report", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"execution_id": "exec-report"`)

	_, err = runApp(t, "inspect", "--log-level", "error", "--database-url", "file://"+root, "--execution-id", "missing")
	assert.Error(t, err)
}

func TestAPI_App(t *testing.T) {
	driver, err := scheduler.NewDriver(scheduler.Config{Store: file.NewStore(t.TempDir(), slog.Default())}, slog.Default())
	require.NoError(t, err)

	loader, err := definition.NewLoader(slog.Default())
	require.NoError(t, err)

	app := NewAPI(slog.Default(), driver, loader).App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/executions/unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
