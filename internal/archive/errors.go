package archive

import "codeberg.org/mutker/vamon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidDBPath = errors.ErrorCode("archive_invalid_db_path")

	// Storage Errors
	ErrStorageInit   = errors.ErrorCode("archive_storage_init_failed")
	ErrStorageAccess = errors.ErrorCode("archive_storage_access_failed")
	ErrStorageClose  = errors.ErrorCode("archive_storage_close_failed")

	// Session Errors
	ErrNoSession = errors.ErrorCode("archive_no_open_session")
)
