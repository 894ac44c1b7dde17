package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *ConvertError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *ConvertError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *ConvertError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Job construction errors

func EmptySourceSet(backend string) *ConvertError {
	return New(CategoryConfig, SeverityFatal, "no source documents resolved for backend").
		WithContext("backend", backend)
}

func UnderscoreSource(path string) *ConvertError {
	return New(CategoryConfig, SeverityFatal, "underscore-prefixed source file is not convertible").
		WithContext("path", path)
}

func RootMismatch(sourceDir, baseDir, outputDir string) *ConvertError {
	return New(CategoryConfig, SeverityFatal, "source, base and output directories must share a filesystem root").
		WithContext("source_dir", sourceDir).
		WithContext("base_dir", baseDir).
		WithContext("output_dir", outputDir)
}

func CallbackNotForkable(backend string) *ConvertError {
	return New(CategoryConfig, SeverityFatal, "callback extensions cannot cross a process boundary").
		WithContext("backend", backend)
}

// Execution errors

func LaunchFailed(mode string, cause error) *ConvertError {
	return Wrap(cause, CategoryLaunch, SeverityFatal, "execution backend failed to launch").
		WithContext("execution_mode", mode)
}

func ConversionFailed(backend string, cause error) *ConvertError {
	return Wrap(cause, CategoryConversion, SeverityFatal, "document conversion failed").
		WithContext("backend", backend)
}

func ForkExited(exitCode int, detail string, cause error) *ConvertError {
	return Wrap(cause, CategoryConversion, SeverityFatal, "forked conversion process exited abnormally").
		WithContext("exit_code", exitCode).
		WithContext("detail", detail)
}

// Post-execution errors

func ReconcileFailed(backend string, cause error) *ConvertError {
	return Wrap(cause, CategoryReconcile, SeverityFatal, "resource reconciliation failed").
		WithContext("backend", backend)
}

func WorkdirError(operation string, cause error) *ConvertError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "working directory operation failed").
		WithContext("operation", operation)
}

func HistoryError(operation string, cause error) *ConvertError {
	return Wrap(cause, CategoryHistory, SeverityError, "invocation history operation failed").
		WithContext("operation", operation)
}
