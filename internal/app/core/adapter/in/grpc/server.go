package grpc

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ledgerv1 "github.com/JoeShih716/go-credit-ledger/api/ledgerv1"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// Ledger 是 GrpcServer 需要的核心操作
type Ledger interface {
	ApplyTransaction(ctx context.Context, customerID, amount int64, kind domain.TransactionKind, description string) (domain.BalanceSnapshot, error)
	Statement(ctx context.Context, customerID int64) (domain.Statement, error)
}

type GrpcServer struct {
	core Ledger
}

func NewGrpcServer(core Ledger) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) ApplyTransaction(ctx context.Context, req *ledgerv1.ApplyTransactionRequest) (*ledgerv1.ApplyTransactionResponse, error) {
	snapshot, err := s.core.ApplyTransaction(ctx,
		req.CustomerId,
		req.Amount,
		domain.TransactionKind(req.Kind),
		req.Description,
	)
	if err != nil {
		return nil, toStatus(err, req.CustomerId)
	}
	return &ledgerv1.ApplyTransactionResponse{
		Limit:   snapshot.Limit,
		Balance: snapshot.Value,
	}, nil
}

func (s *GrpcServer) GetStatement(ctx context.Context, req *ledgerv1.GetStatementRequest) (*ledgerv1.GetStatementResponse, error) {
	statement, err := s.core.Statement(ctx, req.CustomerId)
	if err != nil {
		return nil, toStatus(err, req.CustomerId)
	}

	resp := &ledgerv1.GetStatementResponse{
		Balance: &ledgerv1.StatementBalance{
			Total: statement.Balance.Value,
			Limit: statement.Balance.Limit,
			AsOf:  statement.Balance.AsOf,
		},
		Transactions: make([]*ledgerv1.StatementTransaction, 0, len(statement.Transactions)),
	}
	for _, tran := range statement.Transactions {
		resp.Transactions = append(resp.Transactions, &ledgerv1.StatementTransaction{
			Id:          tran.ID.String(),
			Amount:      tran.Amount,
			Kind:        string(tran.Kind),
			Description: tran.Description,
			OccurredAt:  tran.OccurredAt,
		})
	}
	return resp, nil
}

// toStatus 把 domain error 對應到 gRPC status code
func toStatus(err error, customerID int64) error {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientLimit):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		log.Error().Err(err).Int64("customer_id", customerID).Msg("internal error")
		return status.Error(codes.Internal, "internal error")
	}
}

var _ ledgerv1.LedgerServiceServer = (*GrpcServer)(nil)
