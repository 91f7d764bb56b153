// internal/adapters/grpc/proto/order_test.go
package proto

import (
	"bufio"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	messageLine = regexp.MustCompile(`^message (\w+) \{`)
	fieldLine   = regexp.MustCompile(`^(?:optional |repeated )?\w+ (\w+) = \d+;`)
	rpcLine     = regexp.MustCompile(`^rpc (\w+)\(`)
)

// protoContract reads order.proto into message -> field names, plus the rpc names.
func protoContract(t *testing.T) (map[string][]string, []string) {
	t.Helper()
	f, err := os.Open("order.proto")
	require.NoError(t, err)
	defer f.Close()

	messages := map[string][]string{}
	var rpcs []string
	var current string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case messageLine.MatchString(line):
			current = messageLine.FindStringSubmatch(line)[1]
			messages[current] = nil
		case line == "}":
			current = ""
		case rpcLine.MatchString(line):
			rpcs = append(rpcs, rpcLine.FindStringSubmatch(line)[1])
		case current != "" && fieldLine.MatchString(line):
			messages[current] = append(messages[current], fieldLine.FindStringSubmatch(line)[1])
		}
	}
	require.NoError(t, sc.Err())
	return messages, rpcs
}

func jsonFields(v interface{}) []string {
	typ := reflect.TypeOf(v)
	names := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		names = append(names, strings.SplitN(typ.Field(i).Tag.Get("json"), ",", 2)[0])
	}
	return names
}

func TestOrderProto_MatchesGoTypes(t *testing.T) {
	messages, rpcs := protoContract(t)

	types := map[string]interface{}{
		"Party":                     Party{},
		"PriceBreakdown":            PriceBreakdown{},
		"Order":                     Order{},
		"StatusEvent":               StatusEvent{},
		"RateTable":                 RateTable{},
		"CreateOrderRequest":        CreateOrderRequest{},
		"OrderData":                 OrderData{},
		"CreateOrderResponse":       CreateOrderResponse{},
		"UpdateOrderStatusRequest":  UpdateOrderStatusRequest{},
		"UpdateOrderStatusResponse": UpdateOrderStatusResponse{},
		"GetOrderRequest":           GetOrderRequest{},
		"GetOrderResponse":          GetOrderResponse{},
		"ListOrdersRequest":         ListOrdersRequest{},
		"OrdersData":                OrdersData{},
		"ListOrdersResponse":        ListOrdersResponse{},
		"GetRateTableRequest":       GetRateTableRequest{},
		"GetRateTableResponse":      GetRateTableResponse{},
	}
	require.Len(t, messages, len(types))

	for name, v := range types {
		t.Run(name, func(t *testing.T) {
			fields, ok := messages[name]
			require.True(t, ok, "message %s missing from order.proto", name)
			assert.Equal(t, jsonFields(v), fields)
		})
	}

	var methods []string
	for _, m := range OrderService_ServiceDesc.Methods {
		methods = append(methods, m.MethodName)
	}
	sort.Strings(methods)
	sort.Strings(rpcs)
	assert.Equal(t, methods, rpcs)
	assert.Equal(t, "order.OrderService", OrderService_ServiceDesc.ServiceName)
}
