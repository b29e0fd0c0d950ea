package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/sweet-shop/internal/adapter/handler/rpc"
	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/core/service"
	"github.com/rl1809/sweet-shop/internal/observability"
	"github.com/rl1809/sweet-shop/internal/pkg/logging"
)

type GRPCHandler struct {
	catalog *service.CatalogService
	ledger  *service.LedgerService
}

func NewGRPCHandler(catalog *service.CatalogService, ledger *service.LedgerService) *GRPCHandler {
	return &GRPCHandler{catalog: catalog, ledger: ledger}
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *rpc.PurchaseRequest) (*rpc.PurchaseResponse, error) {
	identity := identityFromContext(ctx)
	quantity := int(req.Quantity)
	if quantity == 0 {
		quantity = 1
	}
	result, err := h.ledger.PurchaseOnce(ctx, req.RequestID, identity.UserID, req.ItemID, quantity)
	if err != nil {
		return nil, grpcError(err)
	}

	return &rpc.PurchaseResponse{
		PurchaseID:     result.Record.ID,
		ItemID:         result.Record.ItemID,
		ItemName:       result.Record.ItemName,
		Quantity:       int32(result.Record.Quantity),
		UnitPrice:      result.Record.UnitPrice.StringFixed(2),
		TotalPrice:     result.TotalPrice.StringFixed(2),
		RemainingStock: int32(result.Item.Quantity),
		CreatedAt:      result.Record.CreatedAt,
	}, nil
}

func (h *GRPCHandler) Restock(ctx context.Context, req *rpc.RestockRequest) (*rpc.Item, error) {
	if !identityFromContext(ctx).IsAdmin() {
		return nil, grpcError(domain.ErrForbidden)
	}
	item, err := h.catalog.Restock(ctx, req.ItemID, int(req.Quantity))
	if err != nil {
		return nil, grpcError(err)
	}
	return toRPCItem(item), nil
}

func (h *GRPCHandler) GetItem(ctx context.Context, req *rpc.GetItemRequest) (*rpc.Item, error) {
	item, err := h.catalog.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, grpcError(err)
	}
	return toRPCItem(item), nil
}

func toRPCItem(item *domain.Item) *rpc.Item {
	return &rpc.Item{
		ID:           item.ID,
		Name:         item.Name,
		CategoryID:   item.CategoryID,
		CategoryName: item.CategoryName,
		Price:        item.Price.StringFixed(2),
		Quantity:     int32(item.Quantity),
	}
}

func grpcCode(kind domain.ErrorKind) codes.Code {
	switch kind {
	case domain.KindInvalidRequest:
		return codes.InvalidArgument
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindInsufficientStock:
		return codes.FailedPrecondition
	case domain.KindUnauthorized:
		return codes.Unauthenticated
	case domain.KindForbidden:
		return codes.PermissionDenied
	case domain.KindConflict:
		return codes.Aborted
	case domain.KindAlreadyExists, domain.KindDuplicateRequest:
		return codes.AlreadyExists
	}
	return codes.Internal
}

// grpcError maps err to its public status. The cause stays reachable through
// Unwrap so the interceptor can log it once.
func grpcError(err error) error {
	kind := domain.KindOf(err)
	return &callError{cause: err, status: status.New(grpcCode(kind), domain.PublicMessage(err))}
}

// callError carries the public status for the wire and the underlying error
// for the request log.
type callError struct {
	cause  error
	status *status.Status
}

func (e *callError) Error() string              { return e.status.Err().Error() }
func (e *callError) GRPCStatus() *status.Status { return e.status }
func (e *callError) Unwrap() error              { return e.cause }

type grpcIdentityKey struct{}

func identityFromContext(ctx context.Context) domain.Identity {
	identity, _ := ctx.Value(grpcIdentityKey{}).(domain.Identity)
	return identity
}

// UnaryServerInterceptor logs every call, records request metrics and, for
// LedgerService methods, resolves the bearer token in the "authorization"
// metadata into an identity.
func UnaryServerInterceptor(base *zap.Logger, metrics *observability.Metrics, auth *service.AuthService) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		md, _ := metadata.FromIncomingContext(ctx)

		rid := firstValue(md, "x-request-id")
		if rid == "" {
			rid = uuid.NewString()
		}
		logger := base.With(zap.String("request_id", rid))
		ctx = logging.NewContext(ctx, logger)

		defer func() {
			code := status.Code(err)
			latency := time.Since(start)
			metrics.ObserveRequest("grpc", info.FullMethod, code.String(), latency.Seconds())

			fields := []zap.Field{
				zap.String("method", info.FullMethod),
				zap.String("code", code.String()),
				zap.Duration("latency", latency),
			}
			if identity := identityFromContext(ctx); identity.UserID != "" {
				fields = append(fields, zap.String("user_id", identity.UserID))
			}
			if code == codes.Internal || code == codes.Unknown {
				logger.Error("grpc_request", append(fields, zap.Error(logCause(err)))...)
				return
			}
			logger.Info("grpc_request", fields...)
		}()

		if strings.HasPrefix(info.FullMethod, "/"+rpc.ServiceName+"/") {
			identity, authErr := auth.Authorize(ctx, BearerToken(firstValue(md, "authorization")))
			if authErr != nil {
				return nil, grpcError(authErr)
			}
			ctx = context.WithValue(ctx, grpcIdentityKey{}, identity)
		}

		return handler(ctx, req)
	}
}

func logCause(err error) error {
	var ce *callError
	if errors.As(err, &ce) {
		return ce.cause
	}
	return err
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
