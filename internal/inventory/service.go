package inventory

import (
	"context"
	"log/slog"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Service exposes product maintenance and the stock operations the sales flow
// depends on.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService wires the inventory service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context, ownerID int64, page shared.Page) ([]Product, error) {
	return s.repo.List(ctx, nil, ownerID, page.Clamp(200))
}

func (s *Service) Get(ctx context.Context, ownerID, id int64) (*Product, error) {
	return s.repo.Get(ctx, nil, ownerID, id)
}

func (s *Service) Create(ctx context.Context, ownerID int64, in ProductInput) (*Product, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	p := &Product{
		OwnerID:  ownerID,
		Name:     in.Name,
		SKU:      in.SKU,
		Unit:     in.Unit,
		Price:    in.Price,
		GSTRate:  in.GSTRate,
		Stock:    in.Stock,
		LowStock: in.LowStock,
	}
	if err := s.repo.Insert(ctx, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, ownerID, id int64, in ProductInput) (*Product, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	p, err := s.repo.Get(ctx, nil, ownerID, id)
	if err != nil {
		return nil, err
	}
	p.Name = in.Name
	p.SKU = in.SKU
	p.Unit = in.Unit
	p.Price = in.Price
	p.GSTRate = in.GSTRate
	p.Stock = in.Stock
	p.LowStock = in.LowStock
	if err := s.repo.Update(ctx, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	return s.repo.Delete(ctx, nil, ownerID, id)
}

// Lookup fetches products by id for callers composing larger documents.
func (s *Service) Lookup(ctx context.Context, q db.Querier, ownerID int64, ids []int64) (map[int64]*Product, error) {
	return s.repo.GetMany(ctx, q, ownerID, ids)
}

// ValidateAvailability checks every requirement against current stock and
// reports all shortages at once. Sales call this before opening their
// transaction so an obviously doomed sale never starts one.
func (s *Service) ValidateAvailability(ctx context.Context, q db.Querier, ownerID int64, reqs []Requirement) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(reqs))
	for _, req := range reqs {
		if req.Quantity <= 0 {
			return shared.Validationf("product %d quantity must be positive", req.ProductID)
		}
		ids = append(ids, req.ProductID)
	}
	products, err := s.repo.GetMany(ctx, q, ownerID, ids)
	if err != nil {
		return err
	}

	var stockErr shared.StockError
	for _, req := range reqs {
		p, ok := products[req.ProductID]
		if !ok {
			return shared.Validationf("product %d not found", req.ProductID)
		}
		if p.Stock < req.Quantity {
			stockErr.Shortages = append(stockErr.Shortages, shared.StockShortage{
				ProductID: p.ID,
				Product:   p.Name,
				Requested: req.Quantity,
				Available: p.Stock,
			})
		}
	}
	if len(stockErr.Shortages) > 0 {
		return &stockErr
	}
	return nil
}

// Deduct removes sold quantities from stock inside the caller's transaction.
func (s *Service) Deduct(ctx context.Context, q db.Querier, ownerID int64, reqs []Requirement) error {
	for _, req := range reqs {
		if err := s.repo.AdjustStock(ctx, q, ownerID, req.ProductID, -req.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Restore returns quantities to stock, used when a sale is voided or a
// purchase is recorded.
func (s *Service) Restore(ctx context.Context, q db.Querier, ownerID int64, reqs []Requirement) error {
	for _, req := range reqs {
		if err := s.repo.AdjustStock(ctx, q, ownerID, req.ProductID, req.Quantity); err != nil {
			return err
		}
	}
	return nil
}
