package lookup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestClientLookupSuccess(t *testing.T) {
	client := &Client{
		Endpoint: "https://lookup.test/v1/lookup",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				body, _ := io.ReadAll(req.Body)
				if !strings.Contains(string(body), `"sentence":"napa valley"`) {
					t.Fatalf("unexpected payload %s", body)
				}
				return respond(200, `{"attributes":[{"code":"region","node_id":100},{"code":"organic","value_boolean":true}]}`)
			}),
		},
	}

	cands, err := client.Lookup(context.Background(), "napa valley")
	require.NoError(t, err)
	assert.Equal(t, []attr.Candidate{
		{Code: "region", Value: attr.NodeValue(100)},
		{Code: "organic", Value: attr.BoolValue(true)},
	}, cands)
}

func TestClientLookupErrors(t *testing.T) {
	_, err := (&Client{}).Lookup(context.Background(), "x")
	assert.Error(t, err)

	status := &Client{
		Endpoint: "https://lookup.test",
		HTTPClient: &http.Client{Transport: roundTrip(func(*http.Request) *http.Response {
			return respond(503, `{}`)
		})},
	}
	_, err = status.Lookup(context.Background(), "x")
	assert.Error(t, err)

	shape := &Client{
		Endpoint: "https://lookup.test",
		HTTPClient: &http.Client{Transport: roundTrip(func(*http.Request) *http.Response {
			return respond(200, `{"attributes":[{"code":"region"}]}`)
		})},
	}
	_, err = shape.Lookup(context.Background(), "x")
	assert.True(t, errors.Is(err, internalerr.ErrUnrecognizedCandidate))
}

func TestAverageVector(t *testing.T) {
	got := AverageVector([][]float64{{1, 2}, nil, {3, 4}, {9}}, 2)
	assert.Equal(t, []float64{2, 3}, got)
	assert.Nil(t, AverageVector([][]float64{nil}, 2))
	assert.Nil(t, AverageVector(nil, 0))
}
