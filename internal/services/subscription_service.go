package services

import (
	"context"
	"errors"

	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/storage"
)

// SubscriptionService reads plan reference data and assigns plans to users.
type SubscriptionService struct {
	plans storage.PlanStore
	users storage.UserStore
}

func NewSubscriptionService(plans storage.PlanStore, users storage.UserStore) *SubscriptionService {
	return &SubscriptionService{plans: plans, users: users}
}

func (s *SubscriptionService) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		return nil, persistence("list plans", err)
	}
	return plans, nil
}

func (s *SubscriptionService) GetPlan(ctx context.Context, planID string) (*models.SubscriptionPlan, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("get plan", err)
	}
	return plan, nil
}

// AssignPlan subscribes the user to an existing plan and returns the updated
// user.
func (s *SubscriptionService) AssignPlan(ctx context.Context, userID, planID string) (*models.User, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("get user", err)
	}

	user.SubscriptionPlanID = &plan.ID
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, persistence("update user", err)
	}
	return user, nil
}
