package domain

// Case states, matching estados_caso.
const (
	EstadoActivo          = "ACTIVO"
	EstadoEnInvestigacion = "EN_INVESTIGACION"
	EstadoEnProceso       = "EN_PROCESO"
	EstadoCerrado         = "CERRADO"
	EstadoArchivado       = "ARCHIVADO"
)

// ValidEstado reports whether s names a known case state.
func ValidEstado(s string) bool {
	switch s {
	case EstadoActivo, EstadoEnInvestigacion, EstadoEnProceso, EstadoCerrado, EstadoArchivado:
		return true
	}
	return false
}

// Permission identifiers carried in the bearer token.
const (
	PermCaseView     = "CASE_VIEW"
	PermCaseAssign   = "CASE_ASSIGN"
	PermCaseReassign = "CASE_REASSIGN"
	PermCaseEdit     = "CASE_EDIT"
)

type Fiscalia struct {
	ID     int64  `json:"idFiscalia"`
	Nombre string `json:"nombre"`
}

type Usuario struct {
	ID            int64  `json:"idUsuario"`
	NombreUsuario string `json:"nombreUsuario"`
	Activo        bool   `json:"activo"`
	CreadoEn      string `json:"creadoEn" format:"date-time"`
}

type Fiscal struct {
	ID             int64  `json:"idFiscal"`
	IDUsuario      *int64 `json:"idUsuario,omitempty"`
	IDFiscalia     int64  `json:"idFiscalia"`
	NombreFiscalia string `json:"nombreFiscalia,omitempty"`
	PrimerNombre   string `json:"primerNombre"`
	PrimerApellido string `json:"primerApellido"`
	Activo         bool   `json:"activo"`
}

// NombreCompleto returns "<nombre> <apellido>".
func (f Fiscal) NombreCompleto() string {
	return f.PrimerNombre + " " + f.PrimerApellido
}

type EstadoCaso struct {
	ID     int64  `json:"idEstadoCaso"`
	Nombre string `json:"nombre" enum:"ACTIVO,EN_INVESTIGACION,EN_PROCESO,CERRADO,ARCHIVADO"`
}

type Caso struct {
	ID               int64   `json:"idCaso"`
	NumeroCasoUnico  string  `json:"numeroCasoUnico"`
	Descripcion      string  `json:"descripcion"`
	IDEstadoCaso     int64   `json:"idEstadoCaso"`
	Estado           string  `json:"estado"`
	IDFiscalAsignado *int64  `json:"idFiscalAsignado,omitempty"`
	NombreFiscal     *string `json:"nombreFiscal,omitempty"`
	FechaAsignacion  *string `json:"fechaAsignacion,omitempty" format:"date-time"`
	DetalleProgreso  *string `json:"detalleProgreso,omitempty"`
	CreadoEn         string  `json:"creadoEn" format:"date-time"`
	ActualizadoEn    string  `json:"actualizadoEn" format:"date-time"`
}

// Cerrado reports whether the case no longer accepts fiscal changes.
func (c Caso) Cerrado() bool {
	return c.Estado == EstadoCerrado || c.Estado == EstadoArchivado
}

type HistorialAsignacion struct {
	ID               int64  `json:"id"`
	IDCaso           int64  `json:"idCaso"`
	IDFiscalAnterior *int64 `json:"idFiscalAnterior,omitempty"`
	IDFiscalNuevo    int64  `json:"idFiscalNuevo"`
	IDUsuario        int64  `json:"idUsuario"`
	Fecha            string `json:"fecha" format:"date-time"`
}
