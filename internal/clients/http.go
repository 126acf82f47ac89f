// Package clients talks to the scoring, NSFW and card rendering services.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// leveledZerolog adapts zerolog to retryablehttp. Errors are demoted to warn
// since the client retries them.
type leveledZerolog struct {
	logger zerolog.Logger
}

func (l leveledZerolog) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l leveledZerolog) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l leveledZerolog) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l leveledZerolog) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// NewHTTPClient returns a plain *http.Client that retries connection errors,
// 429 and 5xx responses.
func NewHTTPClient(opts Options, logger zerolog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	if rc.RetryWaitMin == 0 {
		rc.RetryWaitMin = 500 * time.Millisecond
	}
	if rc.RetryWaitMax == 0 {
		rc.RetryWaitMax = 5 * time.Second
	}
	rc.Logger = retryablehttp.LeveledLogger(leveledZerolog{logger.With().Str("component", "http-client").Logger()})

	client := rc.StandardClient()
	client.Timeout = opts.Timeout
	return client
}

type formFile struct {
	field string
	name  string
	data  []byte
}

type multipartForm struct {
	fields map[string]string
	files  []formFile
}

func (f multipartForm) encode() (*bytes.Buffer, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for k, v := range f.fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, file := range f.files {
		part, err := w.CreateFormFile(file.field, file.name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}

// post sends form to url and returns the response body of a 2xx reply.
func post(ctx context.Context, client *http.Client, service, url string, form multipartForm) ([]byte, error) {
	start := time.Now()
	body, contentType, err := form.encode()
	if err != nil {
		return nil, fmt.Errorf("%s: encode form: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", service, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		callsTotal.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	callDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	if err != nil {
		callsTotal.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("%s: read body: %w", service, err)
	}
	if resp.StatusCode/100 != 2 {
		callsTotal.WithLabelValues(service, "status").Inc()
		return nil, fmt.Errorf("%s: unexpected status %d: %s", service, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	callsTotal.WithLabelValues(service, "ok").Inc()
	return data, nil
}

func postJSON(ctx context.Context, client *http.Client, service, url string, form multipartForm, out any) error {
	data, err := post(ctx, client, service, url, form)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", service, err)
	}
	return nil
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
