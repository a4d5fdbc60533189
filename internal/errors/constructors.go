package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *BuildError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *BuildError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// External tool errors

func GeneratorFailed(target string, cause error) *BuildError {
	return Wrap(cause, CategoryGenerator, SeverityFatal, "map generation failed").
		WithContext("target", target)
}

func ConversionFailed(chapter string, cause error) *BuildError {
	return Wrap(cause, CategoryConvert, SeverityFatal, "chapter conversion failed").
		WithContext("chapter", chapter)
}

func CompilationFailed(target string, cause error) *BuildError {
	return Wrap(cause, CategoryLatex, SeverityFatal, "document compilation failed").
		WithContext("target", target)
}

// Infrastructure errors

func FileSystemError(operation string, cause error) *BuildError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "filesystem operation failed").
		WithContext("operation", operation)
}

func StateError(operation string, cause error) *BuildError {
	return Wrap(cause, CategoryState, SeverityWarning, "build state operation failed").
		WithContext("operation", operation)
}
