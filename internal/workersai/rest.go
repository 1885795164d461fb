package workersai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the Cloudflare REST API root.
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	// DefaultGatewayBaseURL is the AI Gateway root used when a gateway id
	// is configured.
	DefaultGatewayBaseURL = "https://gateway.ai.cloudflare.com/v1"
)

// restBinding implements Binding against the REST API using an account id
// and API token.
type restBinding struct {
	accountID  string
	apiKey     string
	baseURL    string
	gatewayURL string
	client     *http.Client
}

// restEnvelope is the REST API's response wrapper.
type restEnvelope struct {
	Result  json.RawMessage `json:"result"`
	Success *bool           `json:"success"`
}

// Run issues a buffered call and unwraps {"result": ...}.
func (b *restBinding) Run(ctx context.Context, model string, inputs map[string]any, opts RunOptions) (json.RawMessage, error) {
	httpResp, err := b.do(ctx, model, inputs, opts)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading workersai response: %w", err)
	}

	var env restEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding workersai response: %w", err)
	}
	if env.Result == nil {
		// Gateway responses are not always wrapped.
		return json.RawMessage(body), nil
	}
	return env.Result, nil
}

// RunStream issues a call and hands back the response body. Image models
// that answer with JSON ({"result": {"image": "<base64>"}}) are decoded so
// the caller always reads raw bytes.
func (b *restBinding) RunStream(ctx context.Context, model string, inputs map[string]any, opts RunOptions) (io.ReadCloser, error) {
	httpResp, err := b.do(ctx, model, inputs, opts)
	if err != nil {
		return nil, err
	}

	// Do NOT close the body here on success: the caller owns it.
	mediaType, _, _ := mime.ParseMediaType(httpResp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return httpResp.Body, nil
	}

	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading workersai response: %w", err)
	}

	image := gjson.GetBytes(body, "result.image")
	if image.Type != gjson.String {
		image = gjson.GetBytes(body, "image")
	}
	if image.Type != gjson.String {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	raw, err := base64.StdEncoding.DecodeString(image.Str)
	if err != nil {
		return nil, fmt.Errorf("decoding workersai image: %w", err)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// do sends the POST and turns non-2xx answers into *APIError. On success the
// caller owns the response body.
func (b *restBinding) do(ctx context.Context, model string, inputs map[string]any, opts RunOptions) (*http.Response, error) {
	body, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint(model, opts), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	if gw := opts.Gateway; gw != nil && gw.ID != "" {
		if gw.SkipCache {
			httpReq.Header.Set("cf-aig-skip-cache", "true")
		}
		if gw.CacheTTL > 0 {
			httpReq.Header.Set("cf-aig-cache-ttl", strconv.Itoa(gw.CacheTTL))
		}
	}

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to workersai: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer httpResp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
		return nil, parseAPIError(httpResp.StatusCode, errBody)
	}

	return httpResp, nil
}

// endpoint builds the run URL. Model ids contain slashes ("@cf/meta/...")
// that are part of the path, so only the individual segments are escaped.
func (b *restBinding) endpoint(model string, opts RunOptions) string {
	modelPath := escapeModel(model)

	var u string
	if gw := opts.Gateway; gw != nil && gw.ID != "" {
		u = fmt.Sprintf("%s/%s/%s/workers-ai/%s",
			strings.TrimSuffix(b.gatewayURL, "/"), url.PathEscape(b.accountID), url.PathEscape(gw.ID), modelPath)
	} else {
		u = fmt.Sprintf("%s/accounts/%s/ai/run/%s",
			strings.TrimSuffix(b.baseURL, "/"), url.PathEscape(b.accountID), modelPath)
	}

	if len(opts.Extra) > 0 {
		q := url.Values{}
		for k, v := range opts.Extra {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}
	return u
}

func escapeModel(model string) string {
	segments := strings.Split(model, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
