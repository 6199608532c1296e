package server

import "mpcasos/internal/domain"

type AsignarFiscalRequest struct {
	IDFiscal int64 `json:"idFiscal" doc:"Fiscal to assign" example:"5"`
}

// ReasignarFiscalRequest accepts both spellings sent by existing clients.
type ReasignarFiscalRequest struct {
	IDNuevoFiscal *int64 `json:"idNuevoFiscal,omitempty" doc:"New fiscal" example:"5"`
	IDFiscalNuevo *int64 `json:"idFiscalNuevo,omitempty" doc:"Alias of idNuevoFiscal"`
}

func (r ReasignarFiscalRequest) fiscalID() int64 {
	switch {
	case r.IDNuevoFiscal != nil:
		return *r.IDNuevoFiscal
	case r.IDFiscalNuevo != nil:
		return *r.IDFiscalNuevo
	}
	return 0
}

type EstadoCasoRequest struct {
	Estado string `json:"estado" enum:"ACTIVO,EN_INVESTIGACION,EN_PROCESO,CERRADO,ARCHIVADO" example:"CERRADO"`
}

type AssignmentResponse struct {
	Outcome string `json:"outcome" enum:"success" example:"success"`
	Message string `json:"message" example:"Fiscal reasignado exitosamente"`
}

type CasoResponse struct {
	Caso      domain.Caso                  `json:"caso"`
	Historial []domain.HistorialAsignacion `json:"historial"`
}

type FiscalesResponse struct {
	Items []domain.Fiscal `json:"items"`
}

type EstadosResponse struct {
	Items []domain.EstadoCaso `json:"items"`
}
