package ports

import (
	"context"

	"github.com/randomtoy/oraculum/internal/domain"
)

// SpreadRenderer composes the spread image. The compositor itself is an
// external collaborator; results are cacheable by the spread's card and
// position tuple (domain.Spread.Key).
type SpreadRenderer interface {
	Render(ctx context.Context, spread domain.Spread) ([]byte, error)
}
