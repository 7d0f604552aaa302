package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/noah-isme/voice-attendance-api/internal/voice"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

const audioFormField = "audio"

// AudioOptions bounds audio intake for enrollment and identification.
type AudioOptions struct {
	ListenTimeout  time.Duration
	MaxUploadBytes int64
}

// audioPayload is a request DTO that may carry raw samples in its JSON form.
type audioPayload interface {
	RawSamples() ([]float64, int)
}

func limitBody(c *gin.Context, opts AudioOptions) {
	if opts.MaxUploadBytes > 0 && c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, opts.MaxUploadBytes)
	}
}

// readAudioRequest binds dest and decodes its audio inside the listen window,
// so a client that stalls while sending the body gets CAPTURE_TIMEOUT.
// Multipart requests carry a WAV file in the "audio" field; JSON requests
// carry raw samples. dest must not be read unless the call succeeds.
func readAudioRequest(c *gin.Context, dest audioPayload, opts AudioOptions) (voice.Audio, error) {
	limitBody(c, opts)
	req := c.Request
	contentType := c.ContentType()
	multipart := strings.HasPrefix(contentType, binding.MIMEMultipartPOSTForm)

	src := voice.SourceFunc(func(context.Context) (voice.Audio, error) {
		if err := binding.Default(req.Method, contentType).Bind(req, dest); err != nil {
			return voice.Audio{}, bindError(err)
		}
		if multipart {
			return decodeUpload(req, opts.MaxUploadBytes)
		}
		samples, rate := dest.RawSamples()
		if rate <= 0 {
			rate = voice.DefaultSampleRate
		}
		return voice.Audio{Samples: samples, SampleRate: rate}, nil
	})
	return voice.Capture(req.Context(), src, opts.ListenTimeout)
}

func decodeUpload(req *http.Request, limit int64) (voice.Audio, error) {
	file, _, err := req.FormFile(audioFormField)
	if err != nil {
		return voice.Audio{}, appErrors.Wrap(err, appErrors.ErrInvalidAudio.Code, appErrors.ErrInvalidAudio.Status, "audio file is required")
	}
	defer file.Close() //nolint:errcheck
	return voice.DecodeWAV(file, limit)
}

func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return appErrors.Wrap(err, appErrors.ErrInvalidAudio.Code, appErrors.ErrInvalidAudio.Status, "audio upload exceeds size limit")
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
}
