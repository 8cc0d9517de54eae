package errors

// Convenience constructors for common error patterns

// Config and manifest errors

func ConfigNotFound(path string) *DochubError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *DochubError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// ManifestInvalid reports a malformed or incomplete package manifest.
func ManifestInvalid(path, reason string) *DochubError {
	return New(CategoryManifest, SeverityFatal, "invalid package manifest").
		WithContext("path", path).
		WithContext("reason", reason)
}

// DuplicatePackage reports two manifests claiming the same package name.
func DuplicatePackage(name, firstPath, secondPath string) *DochubError {
	return New(CategoryManifest, SeverityFatal, "duplicate package name").
		WithContext("name", name).
		WithContext("first", firstPath).
		WithContext("second", secondPath)
}

// Build errors

func BuildAborted() *DochubError {
	return New(CategoryCompiler, SeverityFatal, "run aborted: compiler tooling unusable")
}

func HubCollision(name, path string) *DochubError {
	return New(CategoryHub, SeverityFatal, "hub collection path already occupied").
		WithContext("package", name).
		WithContext("path", path)
}

func WorkspaceError(operation string, cause error) *DochubError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "filesystem operation failed").
		WithContext("operation", operation)
}
