// Package rpc defines the LedgerService gRPC contract: message types, the
// service descriptor and a typed client. Messages travel as JSON.
package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const (
	ServiceName = "sweetshop.ledger.v1.LedgerService"

	PurchaseMethod = "/" + ServiceName + "/Purchase"
	RestockMethod  = "/" + ServiceName + "/Restock"
	GetItemMethod  = "/" + ServiceName + "/GetItem"
)

type PurchaseRequest struct {
	ItemID    string `json:"item_id"`
	Quantity  int32  `json:"quantity"`
	RequestID string `json:"request_id,omitempty"`
}

type PurchaseResponse struct {
	PurchaseID     string    `json:"purchase_id"`
	ItemID         string    `json:"item_id"`
	ItemName       string    `json:"item_name"`
	Quantity       int32     `json:"quantity"`
	UnitPrice      string    `json:"unit_price"`
	TotalPrice     string    `json:"total_price"`
	RemainingStock int32     `json:"remaining_stock"`
	CreatedAt      time.Time `json:"created_at"`
}

type RestockRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int32  `json:"quantity"`
}

type GetItemRequest struct {
	ItemID string `json:"item_id"`
}

type Item struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Price        string `json:"price"`
	Quantity     int32  `json:"quantity"`
}

type LedgerServer interface {
	Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error)
	Restock(context.Context, *RestockRequest) (*Item, error)
	GetItem(context.Context, *GetItemRequest) (*Item, error)
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Purchase", Handler: purchaseHandler},
		{MethodName: "Restock", Handler: restockHandler},
		{MethodName: "GetItem", Handler: getItemHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sweetshop/ledger/v1/ledger.json",
}

func purchaseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PurchaseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).Purchase(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PurchaseMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServer).Purchase(ctx, req.(*PurchaseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func restockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RestockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).Restock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RestockMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServer).Restock(ctx, req.(*RestockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getItemHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetItemRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).GetItem(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetItemMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServer).GetItem(ctx, req.(*GetItemRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type LedgerClient interface {
	Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error)
	Restock(ctx context.Context, in *RestockRequest, opts ...grpc.CallOption) (*Item, error)
	GetItem(ctx context.Context, in *GetItemRequest, opts ...grpc.CallOption) (*Item, error)
}

type ledgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) LedgerClient {
	return &ledgerClient{cc: cc}
}

func (c *ledgerClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error) {
	out := new(PurchaseResponse)
	if err := c.cc.Invoke(ctx, PurchaseMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) Restock(ctx context.Context, in *RestockRequest, opts ...grpc.CallOption) (*Item, error) {
	out := new(Item)
	if err := c.cc.Invoke(ctx, RestockMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) GetItem(ctx context.Context, in *GetItemRequest, opts ...grpc.CallOption) (*Item, error) {
	out := new(Item)
	if err := c.cc.Invoke(ctx, GetItemMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
