package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"mpcasos/internal/db"
	"mpcasos/internal/domain"
	"mpcasos/internal/migrate"
	"mpcasos/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func TestSeedDemoAndReads(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	d, err := r.SeedDemo(ctx)
	require.NoError(t, err)
	require.Len(t, d.Fiscales, 4)
	require.Len(t, d.Casos, 3)

	c, err := r.GetCaso(ctx, d.Casos[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.EstadoEnInvestigacion, c.Estado)
	require.NotNil(t, c.IDFiscalAsignado)
	require.Equal(t, d.Fiscales[0].ID, *c.IDFiscalAsignado)
	require.NotNil(t, c.NombreFiscal)
	require.Equal(t, "Ana López", *c.NombreFiscal)
	require.NotNil(t, c.FechaAsignacion)

	sinFiscal, err := r.GetCaso(ctx, d.Casos[1].ID)
	require.NoError(t, err)
	require.Nil(t, sinFiscal.IDFiscalAsignado)
	require.Nil(t, sinFiscal.NombreFiscal)

	cerrado, err := r.GetCaso(ctx, d.Casos[2].ID)
	require.NoError(t, err)
	require.True(t, cerrado.Cerrado())
}

func TestGetCasoNotFound(t *testing.T) {
	r := newRepo(t)
	_, err := r.GetCaso(context.Background(), 404)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestListFiscalesActivosSkipsInactive(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	d, err := r.SeedDemo(ctx)
	require.NoError(t, err)

	activos, err := r.ListFiscalesActivos(ctx)
	require.NoError(t, err)
	require.Len(t, activos, 3)
	for _, f := range activos {
		require.True(t, f.Activo)
		require.NotEqual(t, d.Fiscales[2].ID, f.ID)
		require.NotEmpty(t, f.NombreFiscalia)
	}

	require.NoError(t, r.SetFiscalActivo(ctx, d.Fiscales[3].ID, false))
	activos, err = r.ListFiscalesActivos(ctx)
	require.NoError(t, err)
	require.Len(t, activos, 2)
}

func TestListEstados(t *testing.T) {
	r := newRepo(t)
	estados, err := r.ListEstados(context.Background())
	require.NoError(t, err)
	require.Len(t, estados, 5)
	require.Equal(t, domain.EstadoActivo, estados[0].Nombre)
	require.Equal(t, domain.EstadoArchivado, estados[4].Nombre)
}

func TestSetEstadoCasoUnknownCase(t *testing.T) {
	r := newRepo(t)
	err := r.SetEstadoCaso(context.Background(), 99, domain.EstadoCerrado)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestSetEstadoCasoUnknownEstado(t *testing.T) {
	r := newRepo(t)
	d, err := r.SeedDemo(context.Background())
	require.NoError(t, err)
	err = r.SetEstadoCaso(context.Background(), d.Casos[0].ID, "SUSPENDIDO")
	require.ErrorIs(t, err, repo.ErrUnknownEstado)
}

func TestSetEstadoCasoMovesCase(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	d, err := r.SeedDemo(ctx)
	require.NoError(t, err)
	require.NoError(t, r.SetEstadoCaso(ctx, d.Casos[1].ID, domain.EstadoArchivado))
	c, err := r.GetCaso(ctx, d.Casos[1].ID)
	require.NoError(t, err)
	require.Equal(t, domain.EstadoArchivado, c.Estado)
	require.True(t, c.Cerrado())
}
