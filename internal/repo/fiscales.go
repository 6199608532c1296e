package repo

import (
	"context"
	"database/sql"
	"time"

	"mpcasos/internal/domain"
)

func (r Repo) InsertFiscalia(ctx context.Context, nombre string) (domain.Fiscalia, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO fiscalias(nombre) VALUES (?)`, nombre)
	if err != nil {
		return domain.Fiscalia{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Fiscalia{}, err
	}
	return domain.Fiscalia{ID: id, Nombre: nombre}, nil
}

func (r Repo) InsertUsuario(ctx context.Context, nombreUsuario string, activo bool) (domain.Usuario, error) {
	u := domain.Usuario{
		NombreUsuario: nombreUsuario,
		Activo:        activo,
		CreadoEn:      time.Now().UTC().Format(time.RFC3339),
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO usuarios(nombre_usuario,activo,creado_en) VALUES (?,?,?)`,
		u.NombreUsuario, boolInt(u.Activo), u.CreadoEn)
	if err != nil {
		return domain.Usuario{}, err
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return domain.Usuario{}, err
	}
	return u, nil
}

// UsuarioActivo reports whether the user exists and is active.
func UsuarioActivo(ctx context.Context, q querier, id int64) (bool, error) {
	var activo int
	err := q.QueryRowContext(ctx, `SELECT activo FROM usuarios WHERE id=?`, id).Scan(&activo)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return activo == 1, nil
}

func (r Repo) InsertFiscal(ctx context.Context, f domain.Fiscal) (domain.Fiscal, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO fiscales(id_usuario,id_fiscalia,primer_nombre,primer_apellido,activo) VALUES (?,?,?,?,?)`,
		nullableInt(f.IDUsuario), f.IDFiscalia, f.PrimerNombre, f.PrimerApellido, boolInt(f.Activo))
	if err != nil {
		return domain.Fiscal{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Fiscal{}, err
	}
	return r.GetFiscal(ctx, id)
}

// SetFiscalActivo toggles a fiscal's active flag.
func (r Repo) SetFiscalActivo(ctx context.Context, id int64, activo bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE fiscales SET activo=? WHERE id=?`, boolInt(activo), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const fiscalSelect = `SELECT f.id, f.id_usuario, f.id_fiscalia, fa.nombre, f.primer_nombre, f.primer_apellido, f.activo
FROM fiscales f JOIN fiscalias fa ON fa.id = f.id_fiscalia`

func scanFiscal(scan func(dest ...any) error) (domain.Fiscal, error) {
	var f domain.Fiscal
	var usuario sql.NullInt64
	var activo int
	if err := scan(&f.ID, &usuario, &f.IDFiscalia, &f.NombreFiscalia, &f.PrimerNombre, &f.PrimerApellido, &activo); err != nil {
		return f, err
	}
	f.IDUsuario = int64Ptr(usuario)
	f.Activo = activo == 1
	return f, nil
}

func (r Repo) GetFiscal(ctx context.Context, id int64) (domain.Fiscal, error) {
	return GetFiscalTx(ctx, r.DB, id)
}

// GetFiscalTx reads a fiscal through an open transaction or connection.
func GetFiscalTx(ctx context.Context, q querier, id int64) (domain.Fiscal, error) {
	f, err := scanFiscal(q.QueryRowContext(ctx, fiscalSelect+` WHERE f.id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

// ListFiscalesActivos returns active fiscales ordered by surname.
func (r Repo) ListFiscalesActivos(ctx context.Context) ([]domain.Fiscal, error) {
	rows, err := r.DB.QueryContext(ctx, fiscalSelect+` WHERE f.activo=1 ORDER BY f.primer_apellido, f.primer_nombre`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Fiscal
	for rows.Next() {
		f, err := scanFiscal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}
