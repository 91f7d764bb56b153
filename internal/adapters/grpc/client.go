// internal/adapters/grpc/client.go
package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	pb "github.com/mahabubulhasibshawon/parcel-express/internal/adapters/grpc/proto"
	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
)

// RemoteClient is the device's connection to the order service. It implements
// ports.RemoteOrderPort and ports.RateProviderPort.
type RemoteClient struct {
	client pb.OrderServiceClient
}

func NewRemoteClient(cc grpc.ClientConnInterface) *RemoteClient {
	return &RemoteClient{client: pb.NewOrderServiceClient(cc)}
}

// Dial opens a lazy connection; nothing touches the network until the first call.
func Dial(target, token string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(BearerToken(token)),
	}, opts...)
	return grpc.NewClient(target, opts...)
}

func (c *RemoteClient) CreateOrder(ctx context.Context, order *domain.Order) error {
	resp, err := c.client.CreateOrder(ctx, &pb.CreateOrderRequest{Order: toPBOrder(order)})
	if err != nil {
		return transportError(err)
	}
	return envelopeError(resp.Code, resp.Message)
}

func (c *RemoteClient) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, _, err := c.OrderHistory(ctx, id)
	return order, err
}

// OrderHistory returns the order together with its recorded status changes.
func (c *RemoteClient) OrderHistory(ctx context.Context, id string) (*domain.Order, []domain.StatusEvent, error) {
	resp, err := c.client.GetOrder(ctx, &pb.GetOrderRequest{OrderId: id})
	if err != nil {
		return nil, nil, transportError(err)
	}
	if err := envelopeError(resp.Code, resp.Message); err != nil {
		return nil, nil, err
	}
	order, err := fromPBOrder(resp.Data)
	if err != nil {
		return nil, nil, err
	}
	events := make([]domain.StatusEvent, 0, len(resp.Events))
	for _, e := range resp.Events {
		events = append(events, fromPBEvent(id, e))
	}
	return order, events, nil
}

func (c *RemoteClient) UpdateStatus(ctx context.Context, upd domain.StatusUpdate) (*domain.Order, error) {
	resp, err := c.client.UpdateOrderStatus(ctx, &pb.UpdateOrderStatusRequest{
		OrderId:        upd.OrderID,
		ExpectedStatus: string(upd.Expected),
		NextStatus:     string(upd.To),
		CourierId:      upd.CourierID,
	})
	if err != nil {
		return nil, transportError(err)
	}
	if err := envelopeError(resp.Code, resp.Message); err != nil {
		return nil, err
	}
	return fromPBOrder(resp.Data)
}

// ListOrders lists the caller's orders; the identity filter is taken from the token server-side.
func (c *RemoteClient) ListOrders(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, int64, error) {
	resp, err := c.client.ListOrders(ctx, &pb.ListOrdersRequest{
		CreatedSince: formatTime(filter.CreatedSince),
		Limit:        filter.Limit,
		Page:         filter.Page,
	})
	if err != nil {
		return nil, 0, transportError(err)
	}
	if err := envelopeError(resp.Code, resp.Message); err != nil {
		return nil, 0, err
	}
	if resp.Data == nil {
		return nil, 0, nil
	}
	orders := make([]*domain.Order, 0, len(resp.Data.Orders))
	for _, p := range resp.Data.Orders {
		o, err := fromPBOrder(p)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, resp.Data.Total, nil
}

func (c *RemoteClient) RateTable(ctx context.Context, region string) (domain.RateTable, error) {
	resp, err := c.client.GetRateTable(ctx, &pb.GetRateTableRequest{Region: region})
	if err != nil {
		return domain.RateTable{}, transportError(err)
	}
	if err := envelopeError(resp.Code, resp.Message); err != nil {
		return domain.RateTable{}, err
	}
	return fromPBRateTable(resp.Data)
}

// envelopeError turns a response envelope back into the domain error the server started from.
func envelopeError(code int32, message string) error {
	var kind error
	switch code {
	case CodeOK:
		return nil
	case CodeValidation:
		kind = domain.ErrValidation
	case CodeForbidden:
		kind = domain.ErrForbidden
	case CodeNotFound:
		kind = domain.ErrOrderNotFound
	case CodeDuplicate:
		kind = domain.ErrDuplicateOrder
	case CodeStale:
		kind = domain.ErrStaleStatus
	case CodeIllegal:
		kind = domain.ErrIllegalTransition
	default:
		kind = domain.ErrRemoteUnavailable
	}
	return fmt.Errorf("order service (%d) %s: %w", code, message, kind)
}

func transportError(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%s: %w", status.Convert(err).Message(), domain.ErrForbidden)
	}
	return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
}
