package imageref

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrSigningFailed reports a signing call the storage service rejected.
var ErrSigningFailed = errors.New("signing failed")

const signTimeout = 10 * time.Second

// SignedURL is the signing result for one reference. MaxAge is zero when the
// service did not report a lifetime.
type SignedURL struct {
	Reference string
	URL       string
	MaxAge    time.Duration
}

// Signer exchanges references for time-limited download URLs, in order.
type Signer interface {
	Sign(ctx context.Context, references []string) ([]SignedURL, error)
}

// HTTPSigner calls a temp-file signing endpoint of the cloud storage service.
type HTTPSigner struct {
	endpoint    string
	accessToken string
	env         string
	maxAge      time.Duration
	http        *http.Client
}

// HTTPSignerConfig configures an HTTPSigner.
type HTTPSignerConfig struct {
	Endpoint    string
	AccessToken string
	Env         string
	MaxAge      time.Duration
	HTTPClient  *http.Client
}

// NewHTTPSigner validates cfg.
func NewHTTPSigner(cfg HTTPSignerConfig) (*HTTPSigner, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	parsed, err := url.Parse(endpoint)
	if endpoint == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: signing endpoint must be an absolute url", ErrSigningFailed)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: signTimeout}
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &HTTPSigner{
		endpoint:    endpoint,
		accessToken: strings.TrimSpace(cfg.AccessToken),
		env:         strings.TrimSpace(cfg.Env),
		maxAge:      maxAge,
		http:        client,
	}, nil
}

type signFile struct {
	FileID string `json:"fileid"`
	MaxAge int64  `json:"max_age"`
}

type signRequest struct {
	Env      string     `json:"env"`
	FileList []signFile `json:"file_list"`
}

// Sign performs one batch call. Entries the service could not sign come back
// with an empty URL.
func (signer *HTTPSigner) Sign(ctx context.Context, references []string) ([]SignedURL, error) {
	if len(references) == 0 {
		return nil, nil
	}
	payload := signRequest{Env: signer.env}
	for _, reference := range references {
		payload.FileList = append(payload.FileList, signFile{FileID: reference, MaxAge: int64(signer.maxAge / time.Second)})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode sign request: %w", err)
	}

	target := signer.endpoint
	if signer.accessToken != "" {
		target = withQuery(target, "access_token", signer.accessToken)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sign request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	response, err := signer.http.Do(request)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	defer response.Body.Close()
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read sign response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrSigningFailed, response.StatusCode)
	}
	return parseSignResponse(references, raw)
}

func parseSignResponse(references []string, raw []byte) ([]SignedURL, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", ErrSigningFailed)
	}
	document := gjson.ParseBytes(raw)
	if code := document.Get("errcode").Int(); code != 0 {
		return nil, fmt.Errorf("%w: errcode %d %s", ErrSigningFailed, code, document.Get("errmsg").String())
	}
	files := document.Get("file_list")
	if !files.Exists() {
		files = document.Get("fileList")
	}
	results := make([]SignedURL, len(references))
	for index, reference := range references {
		results[index] = SignedURL{Reference: reference}
	}
	files.ForEach(func(key, item gjson.Result) bool {
		index := int(key.Int())
		if fileID := firstString(item, "fileid", "fileID"); fileID != "" {
			index = indexOf(references, fileID)
		}
		if index < 0 || index >= len(results) {
			return true
		}
		if status := item.Get("status"); status.Exists() && status.Int() != 0 {
			return true
		}
		results[index].URL = firstString(item, "download_url", "tempFileURL", "downloadURL")
		if age := firstNumber(item, "max_age", "maxAge"); age > 0 {
			results[index].MaxAge = time.Duration(age) * time.Second
		}
		return true
	})
	return results, nil
}

func firstString(item gjson.Result, paths ...string) string {
	for _, path := range paths {
		if value := item.Get(path).String(); value != "" {
			return value
		}
	}
	return ""
}

func firstNumber(item gjson.Result, paths ...string) int64 {
	for _, path := range paths {
		if value := item.Get(path); value.Exists() {
			return value.Int()
		}
	}
	return 0
}

func indexOf(values []string, target string) int {
	for index, value := range values {
		if value == target {
			return index
		}
	}
	return -1
}

func withQuery(target string, key string, value string) string {
	parsed, err := url.Parse(target)
	if err != nil {
		return target
	}
	query := parsed.Query()
	query.Set(key, value)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
