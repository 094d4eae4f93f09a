package observe_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/reqops/observe"
)

func ExampleRequestMeta_SpanName() {
	meta := observe.RequestMeta{Method: "get", Endpoint: "/users"}
	fmt.Println(meta.SpanName())
	// Output:
	// http.client.GET
}

func ExampleMiddleware_Wrap() {
	mw := observe.Nop()
	call := mw.Wrap(func(ctx context.Context, meta observe.RequestMeta) (observe.CallResult, error) {
		return observe.CallResult{StatusCode: 200, Cached: true}, nil
	})

	res, err := call(context.Background(), observe.RequestMeta{Method: "GET", Endpoint: "/users"})
	fmt.Println(res.StatusCode, res.Cached, err)
	// Output:
	// 200 true <nil>
}
