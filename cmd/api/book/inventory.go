package book

import (
	"context"

	"github.com/sirupsen/logrus"
)

/*
DecrementQuantity takes amount units of the referenced book off the shelf. The store applies
the decrement as one conditional update, so concurrent callers can never drive the quantity
below zero; a shortfall comes back as ErrResponseInsufficientInventory.
*/
func (s *Service) DecrementQuantity(ctx context.Context, ref string, amount int) (Book, error) {
	if amount <= 0 {
		return Book{}, ErrResponseQuantityInvalid
	}

	current, err := s.resolve(ctx, ref)
	if err != nil {
		return Book{}, err
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	updated, err := s.repo.DecrementQuantity(ctx, current.Key, amount, s.now())
	if err != nil {
		return Book{}, s.fail("decrement quantity", err, logrus.Fields{"book_id": current.ID, "amount": amount})
	}
	return updated, nil
}

func (s *Service) RestockQuantity(ctx context.Context, ref string, amount int) (Book, error) {
	if amount <= 0 {
		return Book{}, ErrResponseQuantityInvalid
	}

	current, err := s.resolve(ctx, ref)
	if err != nil {
		return Book{}, err
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	updated, err := s.repo.IncrementQuantity(ctx, current.Key, amount, s.now())
	if err != nil {
		return Book{}, s.fail("restock quantity", err, logrus.Fields{"book_id": current.ID, "amount": amount})
	}
	return updated, nil
}
