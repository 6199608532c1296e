package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"mpcasos/internal/app"
	"mpcasos/internal/apperr"
	"mpcasos/internal/config"
	"mpcasos/internal/domain"
	"mpcasos/internal/repo"
)

var setupOnce sync.Once

func run(t *testing.T, args ...string) error {
	t.Helper()
	setupOnce.Do(func() {
		cobra.OnInitialize(initConfig)
		addPersistentFlags()
		registerCommands()
	})
	// Persistent flags keep their value between executions.
	rootCmd.SetArgs(append([]string{"--config=", "--json=true"}, args...))
	return rootCmd.ExecuteContext(context.Background())
}

func seedWorkspace(t *testing.T, cfg *config.Config) (string, repo.DemoData) {
	t.Helper()
	ws := t.TempDir()
	a, err := app.Open(context.Background(), ws, cfg, nil)
	require.NoError(t, err)
	d, err := a.Repo.SeedDemo(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	return ws, d
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

func TestCasoEstadoBlocksReassignment(t *testing.T) {
	ws, d := seedWorkspace(t, nil)

	require.NoError(t, run(t, "-w", ws, "caso", "estado", id(d.Casos[0].ID), "cerrado"))
	err := run(t, "-w", ws, "caso", "reasignar", id(d.Casos[0].ID), id(d.Fiscales[1].ID), "--requester", id(d.Supervisor.ID))
	require.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))

	require.Error(t, run(t, "-w", ws, "caso", "estado", id(d.Casos[0].ID), "SUSPENDIDO"))

	a, err := app.Open(context.Background(), ws, nil, nil)
	require.NoError(t, err)
	defer a.Close()
	c, err := a.Repo.GetCaso(context.Background(), d.Casos[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.EstadoCerrado, c.Estado)
}

func TestFiscalDesactivar(t *testing.T) {
	ws, d := seedWorkspace(t, nil)

	require.NoError(t, run(t, "-w", ws, "fiscal", "desactivar", id(d.Fiscales[1].ID)))
	err := run(t, "-w", ws, "caso", "reasignar", id(d.Casos[0].ID), id(d.Fiscales[1].ID), "--requester", id(d.Supervisor.ID))
	require.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))

	require.NoError(t, run(t, "-w", ws, "fiscal", "activar", id(d.Fiscales[1].ID)))
	require.NoError(t, run(t, "-w", ws, "caso", "reasignar", id(d.Casos[0].ID), id(d.Fiscales[1].ID), "--requester", id(d.Supervisor.ID)))
}

func TestConfigFlagSelectsFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("audit:\n  sink: table\n"), 0o644))
	cfg, err := config.FromFile(cfgPath)
	require.NoError(t, err)
	ws, d := seedWorkspace(t, cfg)

	require.NoError(t, run(t, "-w", ws, "--config", cfgPath, "config", "validate"))
	err = run(t, "-w", ws, "--config", cfgPath, "caso", "reasignar", id(d.Casos[0].ID), id(d.Fiscales[2].ID), "--requester", id(d.Supervisor.ID))
	require.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))

	a, err := app.Open(context.Background(), ws, cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	rows, err := a.Table.Entries(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, err = os.Stat(filepath.Join(ws, "logs", "failed_reassignments.log"))
	require.True(t, os.IsNotExist(err))

	require.Error(t, run(t, "-w", ws, "--config", filepath.Join(ws, "missing.yml"), "config", "validate"))
}
