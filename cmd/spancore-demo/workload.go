package main

import (
	"errors"
	"time"

	"github.com/deepaksharma/spancore/core/provider"
	"github.com/deepaksharma/spancore/core/span"
)

var errPaymentDeclined = errors.New("payment declined")

// runWorkload simulates one incoming request that queries a database, calls
// a downstream API and publishes a message asynchronously.
func runWorkload(host *provider.Host) error {
	_, err := provider.StartActiveSpan(host, "POST /checkout", func(scope *provider.Scope) (struct{}, error) {
		scope.Span().SetAttributes(map[string]any{
			"http.method":      "POST",
			"http.url":         "https://shop.example.com/checkout",
			"http.route":       "/checkout",
			"http.status_code": 200,
			"client.address":   "203.0.113.7",
			"enduser.id":       "user-42",
			"cart.items":       []int64{3, 1},
		})

		query := host.StartSpan("SELECT carts", provider.WithKind(span.KindClient), provider.WithAttributes(map[string]any{
			"db.system":     "postgresql",
			"db.name":       "shop",
			"db.statement":  "SELECT * FROM carts WHERE user_id = $1",
			"net.peer.name": "db.internal",
			"net.peer.port": 5432,
		}))
		time.Sleep(2 * time.Millisecond)
		query.End()

		_, payErr := provider.StartActiveSpan(host, "HTTP POST", func(scope *provider.Scope) (int, error) {
			scope.Span().SetAttributes(map[string]any{
				"http.method":      "POST",
				"http.url":         "https://payments.example.com/v1/charges",
				"http.status_code": 402,
			})
			scope.Span().RecordException(errPaymentDeclined)
			return 402, errPaymentDeclined
		}, provider.WithKind(span.KindClient))

		published := provider.StartActiveSpanAsync(host, "orders publish", func(scope *provider.Scope) <-chan provider.Result[string] {
			scope.Span().SetAttributes(map[string]any{
				"messaging.system":      "kafka",
				"messaging.destination": "orders",
			})
			out := make(chan provider.Result[string], 1)
			go func() {
				time.Sleep(5 * time.Millisecond)
				out <- provider.Result[string]{Value: "offset-17"}
			}()
			return out
		}, provider.WithKind(span.KindProducer))
		res := <-published

		if payErr != nil {
			scope.Span().AddEvent("payment retry scheduled", map[string]any{"reason": payErr.Error()})
		}
		return struct{}{}, res.Err
	}, provider.WithKind(span.KindServer))

	return err
}
