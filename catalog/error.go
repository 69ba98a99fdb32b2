package catalog

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("CATALOG")

var (
	CodeEntryNotFound         = ErrRegistry.Register("ENTRY_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Catalog entry not found")
	CodeSubFieldNotFound      = ErrRegistry.Register("SUBFIELD_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Catalog sub-field not found")
	CodeInvalidEntry          = ErrRegistry.Register("INVALID_ENTRY", errx.TypeValidation, http.StatusInternalServerError, "Invalid catalog entry")
	CodeNoRemoteSource        = ErrRegistry.Register("NO_REMOTE_SOURCE", errx.TypeValidation, http.StatusBadRequest, "Field has no remote candidate source")
	CodeCandidatesUnavailable = ErrRegistry.Register("CANDIDATES_UNAVAILABLE", errx.TypeExternal, http.StatusBadGateway, "Remote candidates unavailable")
)

func ErrEntryNotFound() *errx.Error {
	return ErrRegistry.New(CodeEntryNotFound)
}

func ErrSubFieldNotFound() *errx.Error {
	return ErrRegistry.New(CodeSubFieldNotFound)
}

func ErrInvalidEntry() *errx.Error {
	return ErrRegistry.New(CodeInvalidEntry)
}

func ErrNoRemoteSource() *errx.Error {
	return ErrRegistry.New(CodeNoRemoteSource)
}

func ErrCandidatesUnavailable() *errx.Error {
	return ErrRegistry.New(CodeCandidatesUnavailable)
}
