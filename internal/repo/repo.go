package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mpcasos/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrUnknownEstado is returned for a state name missing from estados_caso.
	ErrUnknownEstado = errors.New("estado de caso desconocido")
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const casoColumns = `c.id, c.numero_caso_unico, c.descripcion, c.id_estado_caso, e.nombre,
  c.id_fiscal_asignado, CASE WHEN f.id IS NULL THEN NULL ELSE f.primer_nombre || ' ' || f.primer_apellido END,
  c.fecha_asignacion, c.detalle_progreso, c.creado_en, c.actualizado_en`

const casoFrom = `FROM casos c
JOIN estados_caso e ON e.id = c.id_estado_caso
LEFT JOIN fiscales f ON f.id = c.id_fiscal_asignado`

func scanCaso(row *sql.Row) (domain.Caso, error) {
	var c domain.Caso
	var fiscal sql.NullInt64
	var nombre, fecha, detalle sql.NullString
	err := row.Scan(&c.ID, &c.NumeroCasoUnico, &c.Descripcion, &c.IDEstadoCaso, &c.Estado,
		&fiscal, &nombre, &fecha, &detalle, &c.CreadoEn, &c.ActualizadoEn)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.IDFiscalAsignado = int64Ptr(fiscal)
	c.NombreFiscal = stringPtr(nombre)
	c.FechaAsignacion = stringPtr(fecha)
	c.DetalleProgreso = stringPtr(detalle)
	return c, nil
}

func (r Repo) GetCaso(ctx context.Context, id int64) (domain.Caso, error) {
	return GetCasoTx(ctx, r.DB, id)
}

// GetCasoTx reads a case through an open transaction or connection.
func GetCasoTx(ctx context.Context, q querier, id int64) (domain.Caso, error) {
	return scanCaso(q.QueryRowContext(ctx, `SELECT `+casoColumns+` `+casoFrom+` WHERE c.id=?`, id))
}

func (r Repo) InsertCaso(ctx context.Context, c domain.Caso) (domain.Caso, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	if c.CreadoEn == "" {
		c.CreadoEn = now
	}
	if c.ActualizadoEn == "" {
		c.ActualizadoEn = c.CreadoEn
	}
	if c.IDEstadoCaso == 0 {
		c.IDEstadoCaso = 1
	}
	var fecha any
	if c.IDFiscalAsignado != nil {
		fecha = c.CreadoEn
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO casos(numero_caso_unico,descripcion,id_estado_caso,id_fiscal_asignado,fecha_asignacion,detalle_progreso,creado_en,actualizado_en) VALUES (?,?,?,?,?,?,?,?)`,
		c.NumeroCasoUnico, c.Descripcion, c.IDEstadoCaso, nullableInt(c.IDFiscalAsignado), fecha, nullableString(c.DetalleProgreso), c.CreadoEn, c.ActualizadoEn)
	if err != nil {
		return domain.Caso{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Caso{}, err
	}
	return r.GetCaso(ctx, id)
}

// SetEstadoCaso moves a case to the named state.
func (r Repo) SetEstadoCaso(ctx context.Context, id int64, estado string) error {
	if !domain.ValidEstado(estado) {
		return ErrUnknownEstado
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE casos SET id_estado_caso=(SELECT id FROM estados_caso WHERE nombre=?), actualizado_en=? WHERE id=?`,
		estado, time.Now().UTC().Format(time.RFC3339), id)
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

func (r Repo) ListEstados(ctx context.Context) ([]domain.EstadoCaso, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, nombre FROM estados_caso ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.EstadoCaso
	for rows.Next() {
		var e domain.EstadoCaso
		if err := rows.Scan(&e.ID, &e.Nombre); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) ListHistorial(ctx context.Context, idCaso int64) ([]domain.HistorialAsignacion, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, id_caso, id_fiscal_anterior, id_fiscal_nuevo, id_usuario, fecha
FROM historial_asignaciones WHERE id_caso=? ORDER BY id`, idCaso)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistorialAsignacion
	for rows.Next() {
		var h domain.HistorialAsignacion
		var prev sql.NullInt64
		if err := rows.Scan(&h.ID, &h.IDCaso, &prev, &h.IDFiscalNuevo, &h.IDUsuario, &h.Fecha); err != nil {
			return nil, err
		}
		h.IDFiscalAnterior = int64Ptr(prev)
		res = append(res, h)
	}
	return res, rows.Err()
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
