package http

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/core/domain"
	"meetprobe/pkg/errclass"
	"meetprobe/pkg/errors"
)

// toAppError maps helper and client errors onto API error codes. The message
// always carries the original error text, which drivers assert on.
func toAppError(err error) *errors.AppError {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}
	msg := err.Error()
	switch {
	case stderrors.Is(err, domain.ErrNoRoom), stderrors.Is(err, domain.ErrNoActiveRoom):
		return errors.WrapError(err, errors.ErrCodeNotConnected, msg, http.StatusConflict)
	case stderrors.Is(err, domain.ErrPublishDataForbidden):
		return errors.WrapError(err, errors.ErrCodePermissionDenied, msg, http.StatusForbidden)
	case stderrors.Is(err, domain.ErrParticipantNotFound),
		stderrors.Is(err, domain.ErrVideoTrackNotFound),
		stderrors.Is(err, domain.ErrTrackNotPublished),
		stderrors.Is(err, domain.ErrUnknownBinding):
		return errors.WrapError(err, errors.ErrCodeNotFound, msg, http.StatusNotFound)
	case stderrors.Is(err, domain.ErrAlreadyConnected), stderrors.Is(err, domain.ErrNoBaseline):
		return errors.WrapError(err, errors.ErrCodeConflict, msg, http.StatusConflict)
	case stderrors.Is(err, domain.ErrInvalidVideoQuality), stderrors.Is(err, domain.ErrInvalidTrackKind):
		return errors.WrapError(err, errors.ErrCodeInvalidInput, msg, http.StatusBadRequest)
	case errclass.IsPermission(err):
		return errors.WrapError(err, errors.ErrCodePermissionDenied, msg, http.StatusForbidden)
	}
	return errors.WrapError(err, errors.ErrCodeInternal, msg, http.StatusInternalServerError)
}

func fail(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
}

func badRequest(c *gin.Context, message string) {
	_ = c.Error(errors.NewInvalidInputError(message))
}

func trackKind(c *gin.Context) (domain.TrackKind, bool) {
	switch k := domain.TrackKind(c.Param("kind")); k {
	case domain.TrackKindAudio, domain.TrackKindVideo:
		return k, true
	}
	fail(c, domain.ErrInvalidTrackKind)
	return "", false
}
