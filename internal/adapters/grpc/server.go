// internal/adapters/grpc/server.go
package grpc

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "github.com/mahabubulhasibshawon/parcel-express/internal/adapters/grpc/proto"
	"github.com/mahabubulhasibshawon/parcel-express/internal/application"
	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
)

// Envelope codes carried in every response's Code field.
const (
	CodeOK         int32 = 200
	CodeValidation int32 = 400
	CodeForbidden  int32 = 403
	CodeNotFound   int32 = 404
	CodeDuplicate  int32 = 409
	CodeStale      int32 = 412
	CodeIllegal    int32 = 422
	CodeInternal   int32 = 500
)

type Server struct {
	pb.UnimplementedOrderServiceServer
	orderService *application.OrderService
}

func NewServer(orderService *application.OrderService) *Server {
	return &Server{orderService: orderService}
}

func (s *Server) CreateOrder(ctx context.Context, req *pb.CreateOrderRequest) (*pb.CreateOrderResponse, error) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Unauthorized")
	}

	order, err := fromPBOrder(req.Order)
	if err != nil {
		return &pb.CreateOrderResponse{Message: err.Error(), Type: "error", Code: CodeValidation}, nil
	}
	if err := s.orderService.CreateOrder(ctx, order, actor); err != nil {
		code := envelopeCode(ctx, err)
		return &pb.CreateOrderResponse{Message: err.Error(), Type: "error", Code: code}, nil
	}
	return &pb.CreateOrderResponse{
		Message: "Order Created Successfully",
		Type:    "success",
		Code:    CodeOK,
		Data: &pb.OrderData{
			OrderId:     order.ID,
			OrderStatus: string(order.Status),
			TotalFee:    order.Price.Total.String(),
		},
	}, nil
}

func (s *Server) UpdateOrderStatus(ctx context.Context, req *pb.UpdateOrderStatusRequest) (*pb.UpdateOrderStatusResponse, error) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Unauthorized")
	}

	updated, err := s.orderService.UpdateStatus(ctx, domain.StatusUpdate{
		OrderID:  req.OrderId,
		Expected: domain.Status(req.ExpectedStatus),
		To:       domain.Status(req.NextStatus),
		Actor:    actor,
	})
	if err != nil {
		return &pb.UpdateOrderStatusResponse{Message: err.Error(), Type: "error", Code: envelopeCode(ctx, err)}, nil
	}
	return &pb.UpdateOrderStatusResponse{
		Message: "Order Status Updated",
		Type:    "success",
		Code:    CodeOK,
		Data:    toPBOrder(updated),
	}, nil
}

func (s *Server) GetOrder(ctx context.Context, req *pb.GetOrderRequest) (*pb.GetOrderResponse, error) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Unauthorized")
	}

	order, events, err := s.orderService.GetOrder(ctx, req.OrderId, actor)
	if err != nil {
		return &pb.GetOrderResponse{Message: err.Error(), Type: "error", Code: envelopeCode(ctx, err)}, nil
	}
	resp := &pb.GetOrderResponse{Message: "Order fetched.", Type: "success", Code: CodeOK, Data: toPBOrder(order)}
	for _, e := range events {
		resp.Events = append(resp.Events, toPBEvent(e))
	}
	return resp, nil
}

func (s *Server) ListOrders(ctx context.Context, req *pb.ListOrdersRequest) (*pb.ListOrdersResponse, error) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Unauthorized")
	}

	filter := domain.ListFilter{Limit: req.Limit, Page: req.Page}
	if req.CreatedSince != "" {
		since, err := parseTime(req.CreatedSince)
		if err != nil {
			return &pb.ListOrdersResponse{Message: "created_since must be RFC 3339", Type: "error", Code: CodeValidation}, nil
		}
		filter.CreatedSince = since
	}

	page, err := s.orderService.ListOrders(ctx, filter, actor)
	if err != nil {
		return &pb.ListOrdersResponse{Message: err.Error(), Type: "error", Code: envelopeCode(ctx, err)}, nil
	}

	limit, current := req.Limit, req.Page
	if limit < 1 {
		limit = 10
	}
	if current < 1 {
		current = 1
	}
	pbOrders := make([]*pb.Order, 0, len(page.Orders))
	for _, o := range page.Orders {
		pbOrders = append(pbOrders, toPBOrder(o))
	}
	return &pb.ListOrdersResponse{
		Message: "Orders successfully fetched.",
		Type:    "success",
		Code:    CodeOK,
		Data: &pb.OrdersData{
			Orders:      pbOrders,
			Total:       page.Total,
			CurrentPage: current,
			PerPage:     limit,
			TotalInPage: int64(len(pbOrders)),
			LastPage:    int64(math.Ceil(float64(page.Total) / float64(limit))),
		},
	}, nil
}

func (s *Server) GetRateTable(ctx context.Context, req *pb.GetRateTableRequest) (*pb.GetRateTableResponse, error) {
	table, err := s.orderService.RateTable(ctx, req.Region)
	if err != nil {
		return &pb.GetRateTableResponse{Message: err.Error(), Type: "error", Code: envelopeCode(ctx, err)}, nil
	}
	return &pb.GetRateTableResponse{Message: "Rate table fetched.", Type: "success", Code: CodeOK, Data: toPBRateTable(table)}, nil
}

// envelopeCode maps a service error onto the response code devices act on.
func envelopeCode(ctx context.Context, err error) int32 {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrPriceNotConfirmed):
		return CodeValidation
	case errors.Is(err, domain.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, domain.ErrOrderNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrDuplicateOrder):
		return CodeDuplicate
	case errors.Is(err, domain.ErrStaleStatus):
		return CodeStale
	case errors.Is(err, domain.ErrIllegalTransition):
		return CodeIllegal
	}
	logger.FromContext(ctx).Error("request failed", zap.Error(err))
	return CodeInternal
}
