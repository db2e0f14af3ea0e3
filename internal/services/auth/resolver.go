package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = time.Minute
)

// Resolver turns verified token claims into the acting employee. The role
// stored on the employee wins over the role in the token.
type Resolver struct {
	store repo.Store
	cache *expirable.LRU[uuid.UUID, model.Employee]
}

func NewResolver(store repo.Store, size int, ttl time.Duration) *Resolver {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Resolver{
		store: store,
		cache: expirable.NewLRU[uuid.UUID, model.Employee](size, nil, ttl),
	}
}

func (r *Resolver) Resolve(ctx context.Context, claims AccessClaims) (Identity, error) {
	employee, ok := r.cache.Get(claims.EmployeeID)
	if !ok {
		err := r.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
			var err error
			employee, err = tx.Employees().Get(ctx, claims.EmployeeID)
			return err
		})
		if faults.Is(err, faults.KindNotFound) {
			return Identity{}, ErrUnauthorized
		}
		if err != nil {
			return Identity{}, err
		}
		r.cache.Add(employee.ID, employee)
	}

	if !employee.IsActive || employee.Role == enums.RoleNone {
		return Identity{}, ErrUnauthorized
	}
	return Identity{EmployeeID: employee.ID, Role: employee.Role}, nil
}

// Forget drops a cached employee after its role or activity changed.
func (r *Resolver) Forget(employeeID uuid.UUID) {
	r.cache.Remove(employeeID)
}
