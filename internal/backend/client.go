package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/centinelapos/webapp/internal/telemetry/metrics"
	"github.com/centinelapos/webapp/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultErrorMessage = "Error con el servidor"

var ErrUnsupportedMethod = errors.New("unsupported method")

// APIError is the single failure type of the client: transport errors and
// non 2xx responses alike. Msg is safe to show to the user.
type APIError struct {
	StatusCode int
	Msg        string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Message extracts the user facing message out of err.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Msg != "" {
		return apiErr.Msg
	}
	return DefaultErrorMessage
}

// StatusCode returns the HTTP status of the failed call, 0 if unknown.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type tokenContextKey struct{}

// WithToken makes every call made with ctx carry the bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// Upload is a file sent along a multipart form.
type Upload struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     io.Reader
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *freecache.Cache
	metrics    *metrics.Manager
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

func NewClient(baseURL string, httpClient *http.Client, metricsManager *metrics.Manager) *Client {
	megabyte := 1024 * 1024
	cacheSize := 10 * megabyte

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		cache:      freecache.NewCache(cacheSize),
		metrics:    metricsManager,
	}
}

// Do sends body as JSON (when not nil) and decodes the JSON response into out
// (when not nil). A single attempt is made.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	var reqBody io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	_, err = c.send(req, out)
	return err
}

// DoMultipart sends fields and the optional upload as multipart/form-data.
func (c *Client) DoMultipart(ctx context.Context, method, path string, fields map[string]string, upload *Upload, out any) error {
	if method != http.MethodPost && method != http.MethodPut {
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := mw.WriteField(name, fields[name]); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if upload != nil && upload.Content != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, upload.FieldName, upload.FileName))
		contentType := upload.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := mw.CreatePart(header)
		if err != nil {
			return fmt.Errorf("create file part: %w", err)
		}
		if _, err := io.Copy(part, upload.Content); err != nil {
			return fmt.Errorf("copy file part: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	_, err = c.send(req, out)
	return err
}

func (c *Client) send(req *http.Request, out any) (respBytes []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(req.Context(), "backendClient.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("api.path", req.URL.Path),
	)

	status := 0
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if c.metrics != nil {
			c.metrics.CounterAPICalls.WithLabelValues(req.Method, strconv.Itoa(status)).Inc()
			c.metrics.HistogramAPICallDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
		}
	}()

	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log.Tracef("backend client: %s %s", req.Method, req.URL.Path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Msg: DefaultErrorMessage, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	respBytes, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: status, Msg: DefaultErrorMessage, Err: err}
	}

	if status < 200 || status > 299 {
		return nil, &APIError{
			StatusCode: status,
			Msg:        errorMessageFromBody(respBytes),
		}
	}

	if out != nil && len(bytes.TrimSpace(respBytes)) > 0 {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return nil, &APIError{
				StatusCode: status,
				Msg:        DefaultErrorMessage,
				Err:        fmt.Errorf("unmarshal response: %w", err),
			}
		}
	}

	return respBytes, nil
}

func errorMessageFromBody(body []byte) string {
	var errBody struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errBody); err != nil {
		return DefaultErrorMessage
	}
	if errBody.Msg != "" {
		return errBody.Msg
	}
	if errBody.Message != "" {
		return errBody.Message
	}
	return DefaultErrorMessage
}
