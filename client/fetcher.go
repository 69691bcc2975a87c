package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/rcvieira/fluxo/client/querycache"
)

// Doer executes one mutation request and returns the raw result body.
type Doer func(ctx context.Context, method, path string, body any) (json.RawMessage, error)

const defaultRequestTimeout = 15 * time.Second

// responseEnvelope mirrors the server's ResponseData wrapper; only the
// results field matters to the cache.
type responseEnvelope struct {
	Results json.RawMessage `json:"results"`
}

func authHeader(token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(token))
}

// NewHTTPFetcher builds the default query fetcher: a pass-through GET where
// the cache key's segments are the URL path ("projects/p1/comments" ->
// GET {base}/projects/p1/comments). The cached value is the raw results
// JSON; the cache is agnostic to the data shape beyond key-addressing it.
func NewHTTPFetcher(baseURL, token string) querycache.Fetcher {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(ctx context.Context, key querycache.Key) (any, error) {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(baseURL + "/" + strings.Join(key, "/"))
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set(fasthttp.HeaderAccept, "application/json")
		if token != "" {
			req.Header.Set(fasthttp.HeaderAuthorization, authHeader(token))
		}

		deadline := time.Now().Add(defaultRequestTimeout)
		if d, ok := ctx.Deadline(); ok {
			deadline = d
		}
		if err := fasthttp.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}

		if resp.StatusCode() >= 400 {
			return nil, &FetchError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
		}

		var envelope responseEnvelope
		if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
			return nil, err
		}
		return envelope.Results, nil
	}
}

// NewHTTPDoer builds the default mutation executor against the same API.
func NewHTTPDoer(baseURL, token string) Doer {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(baseURL + "/" + strings.TrimLeft(path, "/"))
		req.Header.SetMethod(method)
		req.Header.SetContentType("application/json")
		if token != "" {
			req.Header.Set(fasthttp.HeaderAuthorization, authHeader(token))
		}
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, &MutationError{Err: err}
			}
			req.SetBody(payload)
		}

		deadline := time.Now().Add(defaultRequestTimeout)
		if d, ok := ctx.Deadline(); ok {
			deadline = d
		}
		if err := fasthttp.DoDeadline(req, resp, deadline); err != nil {
			return nil, &MutationError{Err: err}
		}

		if resp.StatusCode() >= 400 {
			return nil, &MutationError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
		}

		var envelope responseEnvelope
		if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
			return nil, &MutationError{Err: err}
		}
		return envelope.Results, nil
	}
}
