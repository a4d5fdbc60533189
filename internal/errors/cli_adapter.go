package errors

// ExitCodeFor maps an error to a CLI exit code. Categories group into
// usage, configuration, tool, and infrastructure failures.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	switch CategoryOf(err) {
	case CategoryValidation:
		return 2
	case CategoryConfig:
		return 7
	case CategoryGenerator, CategoryConvert, CategoryLatex:
		return 8
	case CategoryFileSystem, CategoryState:
		return 3
	default:
		return 1
	}
}
