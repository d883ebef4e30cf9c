package errx

import "net/http"

// WrapProvider maps chat-model and embedding provider errors to AppError.
func WrapProvider(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, ProviderErrorMessage)
}
