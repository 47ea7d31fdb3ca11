// Package ledgerv1 定義 ledger.v1.LedgerService 的訊息與服務描述
//
// 訊息以 JSON codec 傳輸，客戶端必須帶上 grpc.CallContentSubtype(CodecName)，
// NewLedgerServiceClient 會自動加上。
package ledgerv1

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const ServiceName = "ledger.v1.LedgerService"

const (
	LedgerService_ApplyTransaction_FullMethodName = "/ledger.v1.LedgerService/ApplyTransaction"
	LedgerService_GetStatement_FullMethodName     = "/ledger.v1.LedgerService/GetStatement"
)

type ApplyTransactionRequest struct {
	CustomerId  int64  `json:"customer_id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"` // "c" 入帳 / "d" 扣款
	Description string `json:"description"`
}

type ApplyTransactionResponse struct {
	Limit   int64 `json:"limit"`
	Balance int64 `json:"balance"`
}

type GetStatementRequest struct {
	CustomerId int64 `json:"customer_id"`
}

type GetStatementResponse struct {
	Balance      *StatementBalance       `json:"balance"`
	Transactions []*StatementTransaction `json:"transactions"`
}

type StatementBalance struct {
	Total int64     `json:"total"`
	Limit int64     `json:"limit"`
	AsOf  time.Time `json:"as_of"`
}

type StatementTransaction struct {
	Id          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// LedgerServiceClient is the client API for LedgerService.
type LedgerServiceClient interface {
	ApplyTransaction(ctx context.Context, in *ApplyTransactionRequest, opts ...grpc.CallOption) (*ApplyTransactionResponse, error)
	GetStatement(ctx context.Context, in *GetStatementRequest, opts ...grpc.CallOption) (*GetStatementResponse, error)
}

type ledgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) LedgerServiceClient {
	return &ledgerServiceClient{cc}
}

func (c *ledgerServiceClient) ApplyTransaction(ctx context.Context, in *ApplyTransactionRequest, opts ...grpc.CallOption) (*ApplyTransactionResponse, error) {
	out := new(ApplyTransactionResponse)
	if err := c.cc.Invoke(ctx, LedgerService_ApplyTransaction_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) GetStatement(ctx context.Context, in *GetStatementRequest, opts ...grpc.CallOption) (*GetStatementResponse, error) {
	out := new(GetStatementResponse)
	if err := c.cc.Invoke(ctx, LedgerService_GetStatement_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// LedgerServiceServer is the server API for LedgerService.
type LedgerServiceServer interface {
	ApplyTransaction(context.Context, *ApplyTransactionRequest) (*ApplyTransactionResponse, error)
	GetStatement(context.Context, *GetStatementRequest) (*GetStatementResponse, error)
}

func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerService_ServiceDesc, srv)
}

func _LedgerService_ApplyTransaction_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ApplyTransactionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).ApplyTransaction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_ApplyTransaction_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).ApplyTransaction(ctx, req.(*ApplyTransactionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_GetStatement_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStatementRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).GetStatement(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_GetStatement_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).GetStatement(ctx, req.(*GetStatementRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// LedgerService_ServiceDesc is the grpc.ServiceDesc for LedgerService service.
var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ApplyTransaction",
			Handler:    _LedgerService_ApplyTransaction_Handler,
		},
		{
			MethodName: "GetStatement",
			Handler:    _LedgerService_GetStatement_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.json",
}
