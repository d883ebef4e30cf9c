package errx

import (
	"errors"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRedis(t *testing.T) {
	assert.Nil(t, WrapRedis(nil))

	notFound := WrapRedis(redis.Nil)
	require.NotNil(t, notFound)
	assert.Equal(t, http.StatusNotFound, notFound.Status)
	assert.Equal(t, RedisNotFoundMessage, notFound.Message)

	other := WrapRedis(errors.New("connection refused"))
	require.NotNil(t, other)
	assert.Equal(t, http.StatusBadGateway, other.Status)
	assert.Equal(t, RedisErrorMessage, other.Message)
}

func TestAppErrorChain(t *testing.T) {
	base := errors.New("boom")
	wrapped := New(base, http.StatusBadGateway, ProviderErrorMessage)

	assert.ErrorIs(t, wrapped, base)
	assert.Contains(t, wrapped.Error(), "boom")
	assert.Contains(t, wrapped.Error(), ProviderErrorMessage)

	var appErr *AppError
	require.ErrorAs(t, error(wrapped), &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
}

func TestAppErrorWithoutCause(t *testing.T) {
	e := New(nil, http.StatusInternalServerError, SystemErrorMessage)
	assert.Equal(t, SystemErrorMessage, e.Error())
	assert.Nil(t, e.Unwrap())
}
