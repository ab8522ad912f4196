// Package domain models SIPSA (Sistema de Información de Precios y
// Abastecimiento del Sector Agropecuario) price records published by DANE.
//
// # Data Source
//
// Records come from the SOAP service SrvSipsaUpraBeanService. Each operation
// returns a flat list of <return> elements whose children become the keys of a
// [RawRecord]. The service does not version its schema: key casing differs
// between operations and some fields appear under legacy names.
//
// # SIPSA Data Conventions
//
// Field names:
//
//	City operation (promediosSipsaCiudad):
//	  ciudad, codProducto, nombreProducto, precioPromedio, fechaCaptura, fechaCreacion
//	Weekly operation (promediosSipsaSemanaMadr):
//	  artiNombre, fuenNombre, promedioKg, maximoKg, minimoKg, fechaIni, enmaFecha
//
//	Lookups go through ordered candidate lists ([Fields]) so the same
//	normalization code serves both operations and tolerates renamed keys.
//
// Prices:
//
//	Colombian pesos. Values arrive as xsd:double text, but hand-maintained
//	sources sometimes use a comma decimal separator ("10,5"). [ToFloat]
//	accepts both.
//
// Dates:
//
//	Mostly xsd:dateTime with a -05:00 offset ("2024-05-10T00:00:00-05:00").
//	Older records carry plain dates ("2024-05-10") or day-first dates
//	("10/05/2024"). Zone-less values are read as UTC. See [ToTimestamp].
//
// City names:
//
//	Spelled with or without accents and in any case ("MEDELLÍN", "Medellin").
//	Matching uses [NormalizeText].
//
// # Weekly window
//
// The weekly operation is meant to cover the last week, but its latest data
// often lags wall-clock time by weeks. [SelectWindow] tries the literal
// trailing window first. It then falls back to a window anchored at the
// newest record and finally to a capped pass-through.
//
// # ID Generation
//
// Record IDs are short SHA-256 digests of the record's identity tuple,
// prefixed with its kind. They key messages on the optional Kafka sink so
// consumers can upsert idempotently. See [generateID].
package domain
