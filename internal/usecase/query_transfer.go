package usecase

import (
	"context"

	"torrentsession/internal/domain"
	"torrentsession/internal/registry"
)

type GetTransfer struct {
	Registry *registry.Registry
}

func (uc GetTransfer) Execute(ctx context.Context, id domain.TransferID) (domain.TransferInfo, error) {
	info, ok := uc.Registry.Get(id)
	if !ok {
		return domain.TransferInfo{}, notFound(id)
	}
	return info, nil
}

type ListTransfers struct {
	Registry *registry.Registry
}

func (uc ListTransfers) Execute(ctx context.Context) []domain.TransferInfo {
	return uc.Registry.List()
}
