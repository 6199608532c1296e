package repo

import (
	"context"
	"fmt"

	"mpcasos/internal/domain"
)

// DemoData identifies the rows created by SeedDemo.
type DemoData struct {
	Fiscalias       []domain.Fiscalia
	Supervisor      domain.Usuario
	UsuarioInactivo domain.Usuario
	// Fiscales: [0],[1] active in Fiscalias[0]; [2] inactive in Fiscalias[0]; [3] active in Fiscalias[1].
	Fiscales []domain.Fiscal
	// Casos: [0] active with Fiscales[0]; [1] active without fiscal; [2] closed with Fiscales[0].
	Casos []domain.Caso
}

// SeedDemo inserts a small, self-consistent data set into an empty store.
func (r Repo) SeedDemo(ctx context.Context) (DemoData, error) {
	var d DemoData
	for _, nombre := range []string{"Fiscalía Metropolitana", "Fiscalía Regional Norte"} {
		f, err := r.InsertFiscalia(ctx, nombre)
		if err != nil {
			return d, fmt.Errorf("insert fiscalia: %w", err)
		}
		d.Fiscalias = append(d.Fiscalias, f)
	}
	var err error
	if d.Supervisor, err = r.InsertUsuario(ctx, "supervisor", true); err != nil {
		return d, fmt.Errorf("insert usuario: %w", err)
	}
	if d.UsuarioInactivo, err = r.InsertUsuario(ctx, "exfuncionario", false); err != nil {
		return d, fmt.Errorf("insert usuario: %w", err)
	}
	fiscales := []domain.Fiscal{
		{IDFiscalia: d.Fiscalias[0].ID, PrimerNombre: "Ana", PrimerApellido: "López", Activo: true},
		{IDFiscalia: d.Fiscalias[0].ID, PrimerNombre: "Carlos", PrimerApellido: "Méndez", Activo: true},
		{IDFiscalia: d.Fiscalias[0].ID, PrimerNombre: "Rosa", PrimerApellido: "Pérez", Activo: false},
		{IDFiscalia: d.Fiscalias[1].ID, PrimerNombre: "Luis", PrimerApellido: "Ramírez", Activo: true},
	}
	for _, f := range fiscales {
		created, err := r.InsertFiscal(ctx, f)
		if err != nil {
			return d, fmt.Errorf("insert fiscal: %w", err)
		}
		d.Fiscales = append(d.Fiscales, created)
	}
	titular := d.Fiscales[0].ID
	casos := []domain.Caso{
		{NumeroCasoUnico: "MP-2024-0001", Descripcion: "Robo agravado", IDEstadoCaso: 2, IDFiscalAsignado: &titular},
		{NumeroCasoUnico: "MP-2024-0002", Descripcion: "Estafa", IDEstadoCaso: 1},
		{NumeroCasoUnico: "MP-2023-0147", Descripcion: "Lesiones", IDEstadoCaso: 4, IDFiscalAsignado: &titular},
	}
	for _, c := range casos {
		created, err := r.InsertCaso(ctx, c)
		if err != nil {
			return d, fmt.Errorf("insert caso: %w", err)
		}
		d.Casos = append(d.Casos, created)
	}
	return d, nil
}
