package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	ledgerv1 "github.com/JoeShih716/go-credit-ledger/api/ledgerv1"
)

// NewServer 建立 grpc.Server 並註冊 LedgerService 與 health service
//
// 參數:
//
//	core: 帳本核心
//	enableReflection: 是否註冊 reflection (方便 grpcurl 測試)
//	opts: 額外的 ServerOption
//
// 回傳值:
//
//	*grpc.Server: 尚未 Serve 的伺服器
//	*health.Server: 關機前可以把狀態設成 NOT_SERVING
func NewServer(core Ledger, enableReflection bool, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LoggingInterceptor)}, opts...)
	s := grpc.NewServer(opts...)

	ledgerv1.RegisterLedgerServiceServer(s, NewGrpcServer(core))

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ledgerv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	if enableReflection {
		reflection.Register(s)
	}
	return s, healthServer
}
