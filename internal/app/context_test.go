package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"mpcasos/internal/apperr"
	"mpcasos/internal/audit"
	"mpcasos/internal/config"
)

func openApp(t *testing.T, sink string) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Audit.Sink = sink
	logger, _ := logtest.NewNullLogger()
	a, err := Open(context.Background(), t.TempDir(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a
}

func TestOpenWiresFileSink(t *testing.T) {
	ctx := context.Background()
	a := openApp(t, config.SinkFile)
	d, err := a.Repo.SeedDemo(ctx)
	require.NoError(t, err)

	_, err = a.Service.Reassign(ctx, d.Casos[0].ID, d.Fiscales[2].ID, d.Supervisor.ID)
	require.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))

	entries, err := audit.ReadFile(filepath.Join(a.Workspace, "logs", "failed_reassignments.log"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "El fiscal no está activo", entries[0].Reason)
	require.Nil(t, a.Table)

	res, err := a.Service.Reassign(ctx, d.Casos[0].ID, d.Fiscales[1].ID, d.Supervisor.ID)
	require.NoError(t, err)
	require.Equal(t, "Fiscal reasignado exitosamente", res.Message)
}

func TestOpenWiresBothSinks(t *testing.T) {
	ctx := context.Background()
	a := openApp(t, config.SinkBoth)
	d, err := a.Repo.SeedDemo(ctx)
	require.NoError(t, err)

	_, err = a.Service.Assign(ctx, d.Casos[2].ID, d.Fiscales[1].ID, d.Supervisor.ID)
	require.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))

	rows, err := a.Table.Entries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, audit.OpAssign, rows[0].Operation)

	lines, err := audit.ReadFile(a.Config.AuditPath(a.Workspace))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, rows[0].AttemptID, lines[0].AttemptID)
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := ResolveConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, config.SinkFile, cfg.Audit.Sink)
}

func TestOpenWithNilLoggerAndConfig(t *testing.T) {
	a, err := Open(context.Background(), t.TempDir(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, logrus.StandardLogger(), a.Logger)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
