package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mpcasos/internal/repo"
)

const ProcReasignarFiscalValidado = "sp_Caso_ReasignarFiscalValidado"

// Rejection messages returned in Mensaje.
const (
	MsgCasoNoExiste        = "El caso no existe"
	MsgUsuarioNoAutorizado = "El usuario solicitante no está autorizado"
	MsgFiscalNoActivo      = "El fiscal no está activo"
	MsgCasoCerrado         = "El caso está cerrado o archivado y no puede reasignarse"
	MsgFiscalYaAsignado    = "El fiscal ya está asignado al caso"
	MsgFiscaliaDistinta    = "El nuevo fiscal debe pertenecer a la misma fiscalía"
	MsgReasignacionExitosa = "Fiscal reasignado exitosamente"
)

func reject(out Output, msg string) error {
	out["Exito"] = false
	out["Mensaje"] = msg
	return nil
}

func reasignarFiscalValidado(ctx context.Context, tx *sql.Tx, now time.Time, in Params, out Output) error {
	idCaso, err := in.Int64("IdCaso")
	if err != nil {
		return err
	}
	idNuevo, err := in.Int64("IdNuevoFiscal")
	if err != nil {
		return err
	}
	idUsuario, err := in.Int64("IdUsuarioSolicitante")
	if err != nil {
		return err
	}

	caso, err := repo.GetCasoTx(ctx, tx, idCaso)
	if errors.Is(err, repo.ErrNotFound) {
		return reject(out, MsgCasoNoExiste)
	}
	if err != nil {
		return err
	}
	if caso.IDFiscalAsignado != nil {
		out["IdFiscalAnterior"] = *caso.IDFiscalAsignado
	}

	activo, err := repo.UsuarioActivo(ctx, tx, idUsuario)
	if err != nil {
		return err
	}
	if !activo {
		return reject(out, MsgUsuarioNoAutorizado)
	}

	nuevo, err := repo.GetFiscalTx(ctx, tx, idNuevo)
	if errors.Is(err, repo.ErrNotFound) {
		return reject(out, MsgFiscalNoActivo)
	}
	if err != nil {
		return err
	}
	if !nuevo.Activo {
		return reject(out, MsgFiscalNoActivo)
	}

	if caso.Cerrado() {
		return reject(out, MsgCasoCerrado)
	}

	if caso.IDFiscalAsignado != nil {
		if *caso.IDFiscalAsignado == idNuevo {
			return reject(out, MsgFiscalYaAsignado)
		}
		anterior, err := repo.GetFiscalTx(ctx, tx, *caso.IDFiscalAsignado)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err == nil && anterior.IDFiscalia != nuevo.IDFiscalia {
			return reject(out, MsgFiscaliaDistinta)
		}
	}

	ts := now.Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `UPDATE casos SET id_fiscal_asignado=?, fecha_asignacion=?, actualizado_en=? WHERE id=?`,
		idNuevo, ts, ts, idCaso); err != nil {
		return err
	}
	var anterior any
	if caso.IDFiscalAsignado != nil {
		anterior = *caso.IDFiscalAsignado
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO historial_asignaciones(id_caso,id_fiscal_anterior,id_fiscal_nuevo,id_usuario,fecha) VALUES (?,?,?,?,?)`,
		idCaso, anterior, idNuevo, idUsuario, ts); err != nil {
		return err
	}
	out["Exito"] = true
	out["Mensaje"] = MsgReasignacionExitosa
	return nil
}
