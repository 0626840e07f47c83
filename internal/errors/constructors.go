package errors

// Convenience functions for common error patterns

// Config errors

func ConfigRequired(field string) *ImportError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ConfigLoadFailed(path string, cause error) *ImportError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration could not be loaded").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *ImportError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Fetch errors

// FetchFailed reports a transport or HTTP failure for url. status is 0 when
// no response was received.
func FetchFailed(url string, status int, cause error) *ImportError {
	e := Wrap(cause, CategoryNetwork, SeverityError, "fetch failed").
		WithContext("url", url)
	if status > 0 {
		e.WithContext("status", status)
	}
	return e
}

func ParseFailed(url string, cause error) *ImportError {
	return Wrap(cause, CategoryParse, SeverityError, "response could not be decoded").
		WithContext("url", url)
}

// Filesystem errors

func FilesystemFailed(operation, path string, cause error) *ImportError {
	return Wrap(cause, CategoryFileSystem, SeverityError, "filesystem operation failed").
		WithContext("operation", operation).
		WithContext("path", path)
}

// Internal errors

func InternalError(message string, cause error) *ImportError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}

// URL returns the url recorded on a fetch error anywhere in err's chain.
func URL(err error) string {
	u, _ := contextValue(err, "url").(string)
	return u
}

// Status returns the HTTP status recorded on a fetch error anywhere in
// err's chain, or 0.
func Status(err error) int {
	s, _ := contextValue(err, "status").(int)
	return s
}

func contextValue(err error, key string) any {
	for err != nil {
		ie, ok := As(err)
		if !ok {
			return nil
		}
		if v, ok := ie.Context[key]; ok {
			return v
		}
		err = ie.Cause
	}
	return nil
}
