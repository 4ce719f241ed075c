package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())

	err = Newf("formatted %s", "error")
	assert.Equal(t, "formatted error", err.Error())

	var appErr *ApplicationError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, Unknown, appErr.Kind())
}

func TestWrapping(t *testing.T) {
	origErr := New("original error")
	wrappedErr := Wrap(origErr, "wrapped")
	assert.Equal(t, "wrapped: original error", wrappedErr.Error())
	assert.Equal(t, origErr, Unwrap(wrappedErr))

	wrappedFormatted := Wrapf(origErr, "formatted %s", "wrapper")
	assert.Equal(t, "formatted wrapper: original error", wrappedFormatted.Error())

	assert.Nil(t, Wrap(nil, "wrapper"))
	assert.Nil(t, Wrapf(nil, "formatted %s", "wrapper"))

	deepWrapped := Wrap(wrappedErr, "deeper")
	assert.Equal(t, "deeper: wrapped: original error", deepWrapped.Error())
	assert.True(t, Is(deepWrapped, origErr))
}

func TestFileError(t *testing.T) {
	fileErr := NewFileError("cannot read", "/data/settings.json", FileAccessDenied, nil)
	assert.Equal(t, "cannot read: /data/settings.json", fileErr.Error())
	assert.Equal(t, "/data/settings.json", fileErr.Path())
	assert.Equal(t, FileAccessDenied, fileErr.Kind())

	origErr := fmt.Errorf("permission denied")
	fileErr = NewFileError("cannot read", "/data/settings.json", FileAccessDenied, origErr)
	assert.Equal(t, "cannot read: /data/settings.json: permission denied", fileErr.Error())
	assert.Equal(t, origErr, Unwrap(fileErr))

	assert.Equal(t, "file not found", ErrFileNotFound.Error())
	notFound := NewFileError("file not found", "/data/status.json", FileNotFound, nil)
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(fileErr))
}

func TestConfigError(t *testing.T) {
	configErr := NewConfigError("invalid value", "display.poll_interval", InvalidConfig, nil)
	assert.Equal(t, "invalid value: display.poll_interval", configErr.Error())
	assert.Equal(t, "display.poll_interval", configErr.Param())
	assert.True(t, IsInvalidConfig(configErr))
	assert.False(t, IsInvalidConfig(New("some other error")))

	var ce *ConfigError
	assert.True(t, As(Wrap(configErr, "load"), &ce))
	assert.Equal(t, "display.poll_interval", ce.Param())
}

func TestContentError(t *testing.T) {
	contentErr := NewContentError("content file is empty", "tips.json", ContentEmpty, nil)
	assert.Equal(t, "content file is empty: tips.json", contentErr.Error())
	assert.Equal(t, "tips.json", contentErr.Filename())
	assert.True(t, IsContentError(contentErr))
	assert.False(t, IsNotFound(contentErr))

	missing := NewContentError("content file not found", "gone.json", ContentNotFound, nil)
	assert.True(t, IsNotFound(missing))
	assert.Equal(t, ContentNotFound, ErrContentNotFound.Kind())
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("interval", "must be between %d and %d", 5, 120)
	assert.Equal(t, "interval: must be between 5 and 120", err.Error())
	assert.Equal(t, "interval", err.Field())
	assert.Equal(t, InvalidInput, err.Kind())
	assert.True(t, IsValidation(Wrap(err, "save settings")))
	assert.False(t, IsValidation(New("plain")))
}

func TestRemoteError(t *testing.T) {
	err := NewRemoteError("request failed", "/api/settings", 503, nil)
	assert.Equal(t, "request failed: /api/settings: status 503", err.Error())
	assert.Equal(t, RemoteBadStatus, err.Kind())
	assert.Equal(t, 503, err.Status())

	netErr := errors.New("connection refused")
	err = NewRemoteError("request failed", "/api/status", 0, netErr)
	assert.Equal(t, RemoteRequestFailed, err.Kind())
	assert.Equal(t, "request failed: /api/status: connection refused", err.Error())
	assert.True(t, IsRemote(err))
	assert.Equal(t, "/api/status", err.Endpoint())
}

func TestErrorChains(t *testing.T) {
	baseErr := errors.New("base error")
	fileErr := NewFileError("file error", "/data/contents/a.json", FileNotFound, baseErr)
	contentErr := NewContentError("content error", "a.json", ContentNotFound, fileErr)
	configErr := NewConfigError("config error", "data_dir", InvalidConfig, contentErr)

	assert.Equal(t, "config error: data_dir: content error: a.json: file error: /data/contents/a.json: base error", configErr.Error())
	assert.True(t, Is(configErr, baseErr))
	assert.True(t, Is(configErr, fileErr))

	var fe *FileError
	assert.True(t, As(configErr, &fe))
	assert.Equal(t, "/data/contents/a.json", fe.Path())

	assert.True(t, IsNotFound(configErr))
	assert.True(t, IsInvalidConfig(configErr))
	assert.True(t, IsContentError(configErr))
}
